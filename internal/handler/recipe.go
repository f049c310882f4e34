package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/service"
	"github.com/sakif/recipe-box/internal/upload"
)

// requiredFields must be present in every add/edit submission. An empty
// value is accepted; a missing key is not. Notes is optional.
var requiredFields = []string{"title", "category", "prep_time", "ingredients", "instructions"}

// multipartMemory is how much of a multipart body is kept in RAM before
// spilling file parts to temp files.
const multipartMemory = 8 << 20

// RecipeHandler serves the listing and the recipe CRUD pages.
type RecipeHandler struct {
	recipes   *service.RecipeService
	sessions  *auth.SessionManager
	render    *Renderer
	logger    *slog.Logger
	maxUpload int64
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	sessions *auth.SessionManager,
	render *Renderer,
	logger *slog.Logger,
	maxUpload int64,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:   recipes,
		sessions:  sessions,
		render:    render,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

// HandleIndex handles GET /. Anonymous visitors get the login prompt.
func (h *RecipeHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.render.Render(w, r, http.StatusOK, "index", &viewData{
			AuthNotice: r.URL.Query().Get("auth"),
		})
		return
	}

	groups, err := h.recipes.ListGrouped(r.Context(), who)
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "index", &viewData{Title: "My recipes", Groups: groups})
}

// HandleDetail handles GET /recipe/{id}.
func (h *RecipeHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.caller(w, r)
	if !ok {
		return
	}

	recipe, err := h.recipes.Get(r.Context(), who, id)
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "recipe", &viewData{Title: recipe.Title, Recipe: recipe})
}

// HandleAddForm handles GET /recipe/add.
func (h *RecipeHandler) HandleAddForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "/recipe/add", nil, model.RecipeInput{Category: model.CategoryMain}, "")
}

// HandleCreate handles POST /recipe/add.
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())

	in, img, cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		h.formError(w, r, "/recipe/add", nil, in, err)
		return
	}

	recipe, err := h.recipes.Create(r.Context(), who, in, img)
	if err != nil {
		h.formError(w, r, "/recipe/add", nil, in, err)
		return
	}

	h.flash(r, model.FlashSuccess, fmt.Sprintf(`Recipe "%s" added successfully!`, recipe.Title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleEditForm handles GET /recipe/edit/{id}.
func (h *RecipeHandler) HandleEditForm(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.caller(w, r)
	if !ok {
		return
	}

	recipe, err := h.recipes.Get(r.Context(), who, id)
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, editAction(id), recipe, model.InputFrom(recipe), "")
}

// HandleUpdate handles POST /recipe/edit/{id}.
//
// Ownership is settled before the body is read, so a malformed submit on
// someone else's recipe still comes back as Forbidden (or NotFound).
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.caller(w, r)
	if !ok {
		return
	}

	existing, err := h.recipes.Get(r.Context(), who, id)
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}

	in, img, cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		h.formError(w, r, editAction(id), existing, in, err)
		return
	}

	recipe, err := h.recipes.Update(r.Context(), who, id, in, img)
	if err != nil {
		h.formError(w, r, editAction(id), existing, in, err)
		return
	}

	h.flash(r, model.FlashSuccess, fmt.Sprintf(`Recipe "%s" updated successfully!`, recipe.Title))
	http.Redirect(w, r, "/recipe/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

// HandleDelete handles POST /recipe/delete/{id}.
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.caller(w, r)
	if !ok {
		return
	}

	title, err := h.recipes.Remove(r.Context(), who, id)
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}

	h.flash(r, model.FlashSuccess, fmt.Sprintf(`Recipe "%s" deleted successfully!`, title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// caller extracts the identity and the numeric {id}. The router's regexp
// already rejects non-numeric ids; the parse can still overflow.
func (h *RecipeHandler) caller(w http.ResponseWriter, r *http.Request) (model.Identity, int64, bool) {
	who, _ := auth.IdentityFromContext(r.Context())
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.render.renderError(w, r, apperror.NotFound("recipe", raw))
		return who, 0, false
	}
	return who, id, true
}

// parseForm reads either a multipart or a urlencoded body. cleanup is always
// safe to call and releases temp files and the uploaded file handle.
func (h *RecipeHandler) parseForm(w http.ResponseWriter, r *http.Request) (model.RecipeInput, *upload.File, func(), error) {
	var (
		in      model.RecipeInput
		file    multipart.File
		cleanup = func() {
			if file != nil {
				file.Close()
			}
			if r.MultipartForm != nil {
				r.MultipartForm.RemoveAll()
			}
		}
	)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}

	in = model.RecipeInput{
		Title:        r.PostForm.Get("title"),
		Category:     r.PostForm.Get("category"),
		PrepTime:     r.PostForm.Get("prep_time"),
		Ingredients:  r.PostForm.Get("ingredients"),
		Instructions: r.PostForm.Get("instructions"),
		Notes:        r.PostForm.Get("notes"),
	}

	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, nil, cleanup, apperror.ValidationFailed("image",
				fmt.Sprintf("The upload is too large (limit %d MB).", h.maxUpload>>20))
		}
		return in, nil, cleanup, apperror.ValidationFailed("", "The form could not be read.")
	}

	for _, field := range requiredFields {
		if !r.PostForm.Has(field) {
			return in, nil, cleanup, apperror.ValidationFailed(field, "Missing required field: "+field)
		}
	}

	f, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, cleanup, nil
	case err != nil:
		return in, nil, cleanup, apperror.ValidationFailed("image", "The image could not be read.")
	}
	file = f
	if header.Filename == "" {
		return in, nil, cleanup, nil
	}

	return in, &upload.File{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
	}, cleanup, nil
}

// formError re-renders the form with the submitted values for validation
// and upload errors, and hands everything else to renderError. recipe is the
// stored row on edit, so the form keeps its image preview.
func (h *RecipeHandler) formError(w http.ResponseWriter, r *http.Request, action string, recipe *model.Recipe, in model.RecipeInput, err error) {
	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrInvalidUpload) {
		msg := err.Error()
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		h.renderForm(w, r, http.StatusBadRequest, action, recipe, in, msg)
		return
	}
	h.render.renderError(w, r, err)
}

func (h *RecipeHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, action string, recipe *model.Recipe, in model.RecipeInput, errMsg string) {
	title := "Add Recipe"
	if action != "/recipe/add" {
		title = "Edit Recipe"
	}
	h.render.Render(w, r, status, "form", &viewData{
		Title:      title,
		Recipe:     recipe,
		Form:       in,
		FormAction: action,
		Categories: categoryOptions(in.Category),
		Error:      errMsg,
	})
}

// categoryOptions lists the display categories plus current when it is
// something else, so editing an out-of-set recipe does not silently change
// its category.
func categoryOptions(current string) []string {
	options := model.Categories()
	for _, c := range options {
		if c == current {
			return options
		}
	}
	if current == "" {
		return options
	}
	return append(options, current)
}

func (h *RecipeHandler) flash(r *http.Request, kind, message string) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return
	}
	if err := h.sessions.AddFlash(r.Context(), s, kind, message); err != nil {
		h.logger.Error("failed to add flash", slog.String("error", err.Error()))
	}
}

func editAction(id int64) string {
	return "/recipe/edit/" + strconv.FormatInt(id, 10)
}
