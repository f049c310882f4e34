package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

// compile-time check that *DB implements repository.RecipeRepository
var _ repository.RecipeRepository = (*DB)(nil)

const recipeColumns = `id, title, category, prep_time, ingredients, instructions,
	notes, image_filename, user_id, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves GetByID and ListByUser.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (*model.Recipe, error) {
	var (
		r     model.Recipe
		image sql.NullString
	)
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Category,
		&r.PrepTime,
		&r.Ingredients,
		&r.Instructions,
		&r.Notes,
		&image,
		&r.UserID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		r.ImageFilename = &image.String
	}
	return &r, nil
}

// nullable maps a nil or empty image name onto SQL NULL.
func nullable(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts a recipe. The ID comes from SQLite's AUTOINCREMENT and is
// written back onto the struct along with the timestamps.
func (db *DB) Create(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO recipes (title, category, prep_time, ingredients, instructions,
		                      notes, image_filename, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recipe.Title,
		recipe.Category,
		recipe.PrepTime,
		recipe.Ingredients,
		recipe.Instructions,
		recipe.Notes,
		nullable(recipe.ImageFilename),
		recipe.UserID,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating recipe: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new recipe id: %w", err)
	}
	recipe.ID = id

	return nil
}

// GetByID returns apperror.ErrNotFound when no recipe has that ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.Recipe, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)

	recipe, err := scanRecipe(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("recipe", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}
	return recipe, nil
}

// ListByUser returns the user's recipes ordered by title, then id so that
// equal titles keep a stable order.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Recipe, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+recipeColumns+`
		 FROM recipes
		 WHERE user_id = ?
		 ORDER BY title ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes for user %s: %w", userID, err)
	}
	defer rows.Close()

	recipes := make([]model.Recipe, 0)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		recipes = append(recipes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}

	return recipes, nil
}

// Update overwrites every mutable column. Ownership (user_id) and
// created_at never change.
func (db *DB) Update(ctx context.Context, recipe *model.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE recipes
		 SET title = ?, category = ?, prep_time = ?, ingredients = ?,
		     instructions = ?, notes = ?, image_filename = ?, updated_at = ?
		 WHERE id = ?`,
		recipe.Title,
		recipe.Category,
		recipe.PrepTime,
		recipe.Ingredients,
		recipe.Instructions,
		recipe.Notes,
		nullable(recipe.ImageFilename),
		recipe.UpdatedAt,
		recipe.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating recipe %d: %w", recipe.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("recipe", strconv.FormatInt(recipe.ID, 10))
	}

	return nil
}

func (db *DB) Delete(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("recipe", strconv.FormatInt(id, 10))
	}

	return nil
}

// GetByImage returns apperror.ErrNotFound when no recipe references name.
// Stored names carry a unique prefix, so at most one row matches.
func (db *DB) GetByImage(ctx context.Context, name string) (*model.Recipe, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE image_filename = ? LIMIT 1`, name)

	recipe, err := scanRecipe(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("image", name)
		}
		return nil, fmt.Errorf("sqlite: getting recipe by image %s: %w", name, err)
	}
	return recipe, nil
}

// ListImageFilenames feeds the orphan sweep.
func (db *DB) ListImageFilenames(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT image_filename FROM recipes WHERE image_filename IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing image filenames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning image filename: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating image filenames: %w", err)
	}
	return names, nil
}
