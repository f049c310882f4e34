package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/model"
)

// writeJSON is used by the few machine-facing endpoints (health check).
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// renderError is the one place that turns an error into a response.
//
//	ErrNotFound  → 404 page
//	ErrForbidden → redirect to / with a warning flash
//	ErrAuth      → redirect to /?auth=failed
//	anything else → 500 page; details only in the log
//
// Validation and upload errors never reach here: the form handlers catch
// them and re-render the form.
func (rd *Renderer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError

	switch {
	case errors.Is(err, apperror.ErrNotFound):
		rd.Render(w, r, http.StatusNotFound, "error", &viewData{
			Title:  "Not found",
			Status: http.StatusNotFound,
			Error:  "The page or recipe you asked for does not exist.",
		})

	case errors.Is(err, apperror.ErrForbidden):
		msg := "You do not have permission to do that."
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		if s, ok := auth.SessionFromContext(r.Context()); ok {
			if ferr := rd.sessions.AddFlash(r.Context(), s, model.FlashWarning, msg); ferr != nil {
				rd.logger.Error("failed to add flash", slog.String("error", ferr.Error()))
			}
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)

	case errors.Is(err, apperror.ErrAuth):
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)

	default:
		rd.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		rd.Render(w, r, http.StatusInternalServerError, "error", &viewData{
			Title:  "Something went wrong",
			Status: http.StatusInternalServerError,
			Error:  "An internal error occurred. Please try again later.",
		})
	}
}

// NotFound renders the 404 page for routes chi cannot match.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.renderError(w, r, apperror.NotFound("page", r.URL.Path))
}
