package model

import "time"

// Recipe is one user-owned recipe.
//
// ImageFilename is a pointer because "no image" is a real state distinct from
// an empty name; it maps onto a nullable column.
type Recipe struct {
	ID            int64     `json:"id"            db:"id"`
	Title         string    `json:"title"         db:"title"`
	Category      string    `json:"category"      db:"category"`
	PrepTime      string    `json:"prepTime"      db:"prep_time"`
	Ingredients   string    `json:"ingredients"   db:"ingredients"`
	Instructions  string    `json:"instructions"  db:"instructions"`
	Notes         string    `json:"notes"         db:"notes"`
	ImageFilename *string   `json:"imageFilename" db:"image_filename"`
	UserID        string    `json:"userId"        db:"user_id"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// HasImage reports whether the recipe references a stored image.
func (r *Recipe) HasImage() bool {
	return r.ImageFilename != nil && *r.ImageFilename != ""
}

// Image returns the stored image name, or "" when there is none.
func (r *Recipe) Image() string {
	if r.ImageFilename == nil {
		return ""
	}
	return *r.ImageFilename
}

// RecipeInput is the user-editable part of a recipe as submitted by a form.
type RecipeInput struct {
	Title        string
	Category     string
	PrepTime     string
	Ingredients  string
	Instructions string
	Notes        string
}

// Apply copies the input onto r, overwriting every text field.
func (in RecipeInput) Apply(r *Recipe) {
	r.Title = in.Title
	r.Category = in.Category
	r.PrepTime = in.PrepTime
	r.Ingredients = in.Ingredients
	r.Instructions = in.Instructions
	r.Notes = in.Notes
}

// InputFrom is the inverse of Apply, used to prefill the edit form.
func InputFrom(r *Recipe) RecipeInput {
	return RecipeInput{
		Title:        r.Title,
		Category:     r.Category,
		PrepTime:     r.PrepTime,
		Ingredients:  r.Ingredients,
		Instructions: r.Instructions,
		Notes:        r.Notes,
	}
}
