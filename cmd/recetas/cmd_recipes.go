package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/recetas/recetas/internal/middleware"
	"github.com/recetas/recetas/internal/model"
)

var (
	recipeTitle       string
	recipeDescription string
	recipeIngredients []string
	recipeImage       string
	recipePick        string
	listJSON          bool
)

var errNotOwner = errors.New("only the chef who published this recipe can change it")

func init() {
	for _, cmd := range []*cobra.Command{listCmd, searchCmd} {
		cmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	}
	for _, cmd := range []*cobra.Command{createCmd, updateCmd} {
		cmd.Flags().StringVarP(&recipeTitle, "title", "t", "", "recipe title")
		cmd.Flags().StringVarP(&recipeDescription, "description", "d", "", "preparation steps")
		cmd.Flags().StringArrayVarP(&recipeIngredients, "ingredient", "i", nil, "ingredient (repeat for each one)")
		cmd.Flags().StringVar(&recipeImage, "image", "", "path or file:// URI of a jpeg/png photo")
		cmd.Flags().StringVar(&recipePick, "pick", "", "choose the photo interactively: library or camera")
		cmd.MarkFlagsMutuallyExclusive("image", "pick")
	}
}

// recetas list
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recipe, newest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		return a.printRecipes(a.recipes.ListRecipes(ctx))
	}),
}

// recetas search <ingredient>
var searchCmd = &cobra.Command{
	Use:   "search <ingredient>",
	Short: "List recipes that use an ingredient",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		return a.printRecipes(a.recipes.SearchByIngredient(ctx, strings.TrimSpace(args[0])))
	}),
}

// recetas show <id>
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recipe",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		recipe := a.recipes.GetRecipe(ctx, args[0])
		if recipe == nil {
			return fmt.Errorf("recipe %s not found", args[0])
		}
		return a.printJSON(recipe)
	}),
}

// recetas create
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a recipe (chefs only)",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		user := a.auth.GetCurrentUser(ctx)
		if user == nil {
			return errNotSignedIn
		}
		if !user.IsChef() {
			return errors.New("only chefs can publish recipes")
		}

		title, description, ingredients, err := recipeFields()
		if err != nil {
			return err
		}
		image, err := a.chooseImage(ctx)
		if err != nil {
			return err
		}

		recipe, err := check(a.recipes.CreateRecipe(ctx, title, description, ingredients, user.ID, image))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Recipe %s published.\n", recipe.ID)
		return nil
	}),
}

// recetas update <id>
var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit one of your recipes; the photo is kept unless a new one is given",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		current, err := a.ownedRecipe(ctx, args[0])
		if err != nil {
			return err
		}

		// Unset flags keep the stored values, the way the edit screen is
		// pre-filled with them.
		if recipeTitle == "" {
			recipeTitle = current.Title
		}
		if recipeDescription == "" {
			recipeDescription = current.Description
		}
		if len(recipeIngredients) == 0 {
			recipeIngredients = current.Ingredients
		}

		title, description, ingredients, err := recipeFields()
		if err != nil {
			return err
		}
		image, err := a.chooseImage(ctx)
		if err != nil {
			return err
		}

		if _, err := check(a.recipes.UpdateRecipe(ctx, current.ID, title, description, ingredients, image)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Recipe %s updated.\n", current.ID)
		return nil
	}),
}

// recetas delete <id>
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one of your recipes",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		recipe, err := a.ownedRecipe(ctx, args[0])
		if err != nil {
			return err
		}
		if _, err := check(a.recipes.DeleteRecipe(ctx, recipe.ID)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Recipe %s deleted.\n", recipe.ID)
		return nil
	}),
}

// recetas pick library|camera
var pickCmd = &cobra.Command{
	Use:       "pick library|camera",
	Short:     "Choose a photo and print its local URI",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"library", "camera"},
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		uri := a.pick(ctx, args[0])
		if uri == "" {
			return errors.New("no photo selected")
		}
		fmt.Fprintln(a.out, uri)
		return nil
	}),
}

// recipeFields normalizes and validates the recipe flags.
func recipeFields() (string, string, []string, error) {
	title := strings.TrimSpace(recipeTitle)
	description := strings.TrimSpace(recipeDescription)
	ingredients := middleware.NormalizeIngredients(recipeIngredients)
	if err := middleware.ValidateRecipe(title, description, ingredients); err != nil {
		return "", "", nil, err
	}
	return title, description, ingredients, nil
}

// chooseImage resolves --image or --pick to a local URI, or "" for none.
func (a *app) chooseImage(ctx context.Context) (string, error) {
	if recipeImage != "" {
		return recipeImage, nil
	}
	if recipePick == "" {
		return "", nil
	}
	if recipePick != "library" && recipePick != "camera" {
		return "", fmt.Errorf("--pick must be library or camera, got %q", recipePick)
	}
	// A cancelled or refused pick publishes without a photo.
	return a.pick(ctx, recipePick), nil
}

func (a *app) pick(ctx context.Context, source string) string {
	if source == "camera" {
		return a.recipes.TakePhoto(ctx)
	}
	return a.recipes.PickFromLibrary(ctx)
}

// ownedRecipe loads a recipe and checks that the signed-in chef owns it.
// The backend access rules remain authoritative.
func (a *app) ownedRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	user := a.auth.GetCurrentUser(ctx)
	if user == nil {
		return nil, errNotSignedIn
	}
	recipe := a.recipes.GetRecipe(ctx, id)
	if recipe == nil {
		return nil, fmt.Errorf("recipe %s not found", id)
	}
	if !user.Owns(recipe) {
		return nil, errNotOwner
	}
	return recipe, nil
}

func (a *app) printRecipes(recipes []model.Recipe) error {
	if listJSON {
		return a.printJSON(recipes)
	}
	return writeRecipeTable(a.out, recipes)
}

func writeRecipeTable(w io.Writer, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		_, err := fmt.Fprintln(w, "No recipes found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tINGREDIENTS\tPHOTO\tCREATED")
	for _, r := range recipes {
		photo := "-"
		if r.HasImage() {
			photo = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Title,
			strings.Join(r.Ingredients, ", "),
			photo,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}
