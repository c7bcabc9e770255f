package main

import (
	"context"
	"log/slog"

	"github.com/recetas/recetas/internal/model"
	"github.com/recetas/recetas/internal/usecase"
)

// profileCreator inserts the profile row of a new identity.
type profileCreator interface {
	CreateProfile(ctx context.Context, user *model.User) error
}

// provisioningIdentity creates the profile row right after sign-up. The
// hosted service does this with a database trigger; a database of our own
// has none.
type provisioningIdentity struct {
	usecase.IdentityGateway
	profiles profileCreator
	logger   *slog.Logger
}

func (p *provisioningIdentity) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	identity, session, err := p.IdentityGateway.SignUp(ctx, email, password)
	if err != nil || identity == nil {
		return identity, session, err
	}

	if err := p.profiles.CreateProfile(ctx, &model.User{ID: identity.ID, Email: identity.Email, Role: model.RoleUser}); err != nil {
		p.logger.Error("failed to provision profile",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return identity, session, err
	}
	return identity, session, nil
}
