// Package service holds the application's business rules. Handlers call
// services; services call repositories and the upload manager. Nothing in
// here knows about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/metrics"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
	"github.com/sakif/recipe-box/internal/upload"
)

// Column widths of the recipes table.
const (
	MaxTitleLength    = 150
	MaxCategoryLength = 50
	MaxPrepTimeLength = 50
)

// ImageStore is the slice of *upload.Manager the recipe service uses.
type ImageStore interface {
	Stage(ctx context.Context, f upload.File) (*upload.Staged, error)
	Commit(ctx context.Context, s *upload.Staged) error
	Discard(ctx context.Context, s *upload.Staged)
	Delete(ctx context.Context, name string) error
	Open(ctx context.Context, name string) (io.ReadSeekCloser, upload.Object, error)
}

// RecipeService implements recipe CRUD for one authenticated caller at a
// time. Every method takes the caller's identity explicitly.
type RecipeService struct {
	repo   repository.RecipeRepository
	images ImageStore
	logger *slog.Logger
}

func NewRecipeService(repo repository.RecipeRepository, images ImageStore, logger *slog.Logger) *RecipeService {
	return &RecipeService{repo: repo, images: images, logger: logger}
}

// authorize is the single ownership check. It returns the recipe when who
// owns it, apperror.ErrNotFound when it does not exist and
// apperror.ErrForbidden when someone else owns it.
func (s *RecipeService) authorize(ctx context.Context, who model.Identity, id int64) (*model.Recipe, error) {
	if who.UserID == "" {
		return nil, apperror.Forbidden("You must be logged in.")
	}
	recipe, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if recipe.UserID != who.UserID {
		s.logger.Warn("recipe access denied",
			slog.Int64("recipeID", id),
			slog.String("userID", who.UserID),
		)
		return nil, apperror.Forbidden("You do not have permission to access this recipe.")
	}
	return recipe, nil
}

// ListGrouped returns the caller's recipes in the four display buckets.
func (s *RecipeService) ListGrouped(ctx context.Context, who model.Identity) ([]model.CategoryGroup, error) {
	recipes, err := s.repo.ListByUser(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("service: listing recipes: %w", err)
	}
	return model.GroupByCategory(recipes), nil
}

func (s *RecipeService) Get(ctx context.Context, who model.Identity, id int64) (*model.Recipe, error) {
	return s.authorize(ctx, who, id)
}

// Create stores a new recipe owned by who. img may be nil.
//
// With an image the order is: stage the bytes, insert the row, promote the
// staged object. A failed insert discards the staged bytes; a failed
// promotion deletes the row again, so no recipe ever points at a file that
// does not exist.
func (s *RecipeService) Create(ctx context.Context, who model.Identity, in model.RecipeInput, img *upload.File) (*model.Recipe, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	staged, err := s.stage(ctx, img)
	if err != nil {
		return nil, err
	}

	recipe := &model.Recipe{UserID: who.UserID}
	in.Apply(recipe)
	if staged != nil {
		recipe.ImageFilename = &staged.Name
	}

	if err := s.repo.Create(ctx, recipe); err != nil {
		s.images.Discard(ctx, staged)
		observe("create", err)
		return nil, fmt.Errorf("service: creating recipe: %w", err)
	}

	if staged != nil {
		if err := s.images.Commit(ctx, staged); err != nil {
			if derr := s.repo.Delete(ctx, recipe.ID); derr != nil {
				s.logger.Error("failed to roll back recipe after image commit failure",
					slog.Int64("recipeID", recipe.ID),
					slog.String("error", derr.Error()),
				)
			}
			s.images.Discard(ctx, staged)
			observe("create", err)
			return nil, fmt.Errorf("service: storing image: %w", err)
		}
	}

	observe("create", nil)
	s.logger.Info("recipe created",
		slog.Int64("recipeID", recipe.ID),
		slog.String("userID", who.UserID),
		slog.String("title", recipe.Title),
		slog.Bool("image", staged != nil),
	)
	return recipe, nil
}

// Update overwrites every text field of a recipe owned by who. img may be
// nil, which keeps the current image.
//
// An invalid new image rejects the whole update. A valid one replaces the
// old image: the old file is deleted only after the row points at the new
// one. If promoting the new image fails the row is pointed back at the old
// image.
func (s *RecipeService) Update(ctx context.Context, who model.Identity, id int64, in model.RecipeInput, img *upload.File) (*model.Recipe, error) {
	recipe, err := s.authorize(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	staged, err := s.stage(ctx, img)
	if err != nil {
		return nil, err
	}

	oldImage := recipe.ImageFilename
	in.Apply(recipe)
	if staged != nil {
		recipe.ImageFilename = &staged.Name
	}

	if err := s.repo.Update(ctx, recipe); err != nil {
		s.images.Discard(ctx, staged)
		observe("update", err)
		return nil, fmt.Errorf("service: updating recipe %d: %w", id, err)
	}

	if staged != nil {
		if err := s.images.Commit(ctx, staged); err != nil {
			recipe.ImageFilename = oldImage
			if rerr := s.repo.Update(ctx, recipe); rerr != nil {
				s.logger.Error("failed to restore image reference after commit failure",
					slog.Int64("recipeID", id),
					slog.String("error", rerr.Error()),
				)
			}
			s.images.Discard(ctx, staged)
			observe("update", err)
			return nil, fmt.Errorf("service: storing image: %w", err)
		}

		if oldImage != nil && *oldImage != "" {
			s.deleteImage(ctx, *oldImage, id)
		}
	}

	observe("update", nil)
	s.logger.Info("recipe updated",
		slog.Int64("recipeID", id),
		slog.String("userID", who.UserID),
		slog.Bool("imageReplaced", staged != nil),
	)
	return recipe, nil
}

// Remove deletes a recipe owned by who, then its image if it has one.
// The title is returned for the confirmation message.
func (s *RecipeService) Remove(ctx context.Context, who model.Identity, id int64) (string, error) {
	recipe, err := s.authorize(ctx, who, id)
	if err != nil {
		return "", err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		observe("delete", err)
		return "", fmt.Errorf("service: deleting recipe %d: %w", id, err)
	}

	if recipe.HasImage() {
		s.deleteImage(ctx, recipe.Image(), id)
	}

	observe("delete", nil)
	s.logger.Info("recipe deleted",
		slog.Int64("recipeID", id),
		slog.String("userID", who.UserID),
	)
	return recipe.Title, nil
}

// OpenImage returns an image for who. Only the owner of the recipe that
// references name may read it; anyone else gets NotFound, the same as for
// a name that does not exist.
func (s *RecipeService) OpenImage(ctx context.Context, who model.Identity, name string) (io.ReadSeekCloser, upload.Object, error) {
	recipe, err := s.repo.GetByImage(ctx, name)
	if err != nil {
		return nil, upload.Object{}, err
	}
	if who.UserID == "" || recipe.UserID != who.UserID {
		return nil, upload.Object{}, apperror.NotFound("image", name)
	}
	return s.images.Open(ctx, name)
}

// ReferencedImages returns the set of image names any recipe points at.
// The orphan sweep keeps exactly these.
func (s *RecipeService) ReferencedImages(ctx context.Context) (map[string]struct{}, error) {
	names, err := s.repo.ListImageFilenames(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: listing image names: %w", err)
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

func (s *RecipeService) stage(ctx context.Context, img *upload.File) (*upload.Staged, error) {
	if img == nil {
		return nil, nil
	}
	staged, err := s.images.Stage(ctx, *img)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidUpload) {
			s.logger.Info("upload rejected", slog.String("filename", img.Filename))
			return nil, err
		}
		return nil, fmt.Errorf("service: staging image: %w", err)
	}
	return staged, nil
}

// deleteImage removes a file the database no longer references. By now
// the row change is committed, so a failure only leaves an orphan for the
// sweep; it is logged and otherwise ignored.
func (s *RecipeService) deleteImage(ctx context.Context, name string, recipeID int64) {
	if err := s.images.Delete(ctx, name); err != nil {
		s.logger.Error("failed to delete image",
			slog.String("image", name),
			slog.Int64("recipeID", recipeID),
			slog.String("error", err.Error()),
		)
	}
}

func validateInput(in model.RecipeInput) error {
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			"Title must be at most "+strconv.Itoa(MaxTitleLength)+" characters.")
	}
	if utf8.RuneCountInString(in.Category) > MaxCategoryLength {
		return apperror.ValidationFailed("category",
			"Category must be at most "+strconv.Itoa(MaxCategoryLength)+" characters.")
	}
	if utf8.RuneCountInString(in.PrepTime) > MaxPrepTimeLength {
		return apperror.ValidationFailed("prep_time",
			"Prep time must be at most "+strconv.Itoa(MaxPrepTimeLength)+" characters.")
	}
	return nil
}

func observe(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecipeOperations.WithLabelValues(op, result).Inc()
}
