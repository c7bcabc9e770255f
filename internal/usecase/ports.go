package usecase

import (
	"context"

	"github.com/recetas/recetas/internal/model"
)

// IdentityGateway is the remote identity service.
type IdentityGateway interface {
	// SignUp creates an identity. The session is nil while the account
	// awaits confirmation; the identity is nil when the service returned none.
	SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
	SignOut(ctx context.Context) error
	// GetUser returns nil without error when there is no session.
	GetUser(ctx context.Context) (*model.Identity, error)
	OnAuthChange(handler func(model.AuthChange)) (cancel func())
}

// ProfileStore reads and updates profile records.
type ProfileStore interface {
	UpdateRole(ctx context.Context, userID string, role model.Role) error
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// RecipeStore persists recipes. List and ListByIngredient return newest first.
type RecipeStore interface {
	List(ctx context.Context) ([]model.Recipe, error)
	ListByIngredient(ctx context.Context, ingredient string) ([]model.Recipe, error)
	Get(ctx context.Context, id string) (*model.Recipe, error)
	Insert(ctx context.Context, input model.RecipeInput) (*model.Recipe, error)
	Update(ctx context.Context, id string, patch model.RecipePatch) (*model.Recipe, error)
	Delete(ctx context.Context, id string) error
}

// MediaUploader hosts local images and returns their public URL.
type MediaUploader interface {
	Upload(ctx context.Context, localURI string) (string, error)
}
