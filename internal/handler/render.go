package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/model"
)

// viewData is what every template receives. Pages use the fields they need
// and ignore the rest.
type viewData struct {
	Title   string
	User    *model.Identity
	Flashes []model.Flash

	// index
	Groups     []model.CategoryGroup
	AuthNotice string

	// detail and form
	Recipe     *model.Recipe
	Form       model.RecipeInput
	FormAction string
	Categories []string

	// form and error
	Error  string
	Status int
}

// Renderer executes page templates inside the shared layout.
type Renderer struct {
	pages    map[string]*template.Template
	sessions *auth.SessionManager
	logger   *slog.Logger
}

var pageNames = []string{"index", "recipe", "form", "error"}

// NewRenderer parses templates/base.html together with each page template.
// Every page gets its own template set because they all define "content".
func NewRenderer(templates fs.FS, sessions *auth.SessionManager, logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templates, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, sessions: sessions, logger: logger}, nil
}

// Render fills in the caller's identity and pending flashes, then writes the
// page. The template runs into a buffer first so a template error can still
// become a clean 500.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data *viewData) {
	if data == nil {
		data = &viewData{}
	}
	if s, ok := auth.SessionFromContext(r.Context()); ok {
		who := s.Identity()
		data.User = &who
		flashes, err := rd.sessions.PopFlashes(r.Context(), s)
		if err != nil {
			rd.logger.Error("failed to clear flashes", slog.String("error", err.Error()))
		}
		data.Flashes = flashes
	}

	t, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
