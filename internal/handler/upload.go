package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/service"
)

// UploadHandler serves committed recipe images to the recipe's owner.
type UploadHandler struct {
	recipes *service.RecipeService
	render  *Renderer
}

func NewUploadHandler(recipes *service.RecipeService, render *Renderer) *UploadHandler {
	return &UploadHandler{recipes: recipes, render: render}
}

// HandleServe handles GET /uploads/{name}. Images of other users answer
// 404 like names that do not exist.
func (h *UploadHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	who, _ := auth.IdentityFromContext(r.Context())

	body, obj, err := h.recipes.OpenImage(r.Context(), who, name)
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, obj.ModTime, body)
}
