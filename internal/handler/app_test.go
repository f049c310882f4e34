package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/handler"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository/sqlite"
	"github.com/sakif/recipe-box/internal/service"
	"github.com/sakif/recipe-box/internal/upload"
	"github.com/sakif/recipe-box/web"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeProvider maps authorization codes to identities.
type fakeProvider struct {
	claims map[string]*auth.Claims
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*auth.Claims, error) {
	c, ok := f.claims[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	return c, nil
}

// testApp is the full handler stack on an in-memory database and a
// temp-dir image store.
type testApp struct {
	t      *testing.T
	db     *sqlite.DB
	store  *upload.FSStore
	router http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := upload.NewFSStore(t.TempDir())
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret-at-least-16")
	require.NoError(t, err)
	sessions := auth.NewSessionManager(db, tokens, time.Hour, false)

	provider := &fakeProvider{claims: map[string]*auth.Claims{
		"alice-code": {Subject: "alice", Name: "Alice", Email: "alice@example.com"},
		"bob-code":   {Subject: "bob", Name: "Bob", Email: "bob@example.com"},
	}}

	uploads := upload.NewManager(store, logger)
	recipes := service.NewRecipeService(db, uploads, logger)
	authService := service.NewAuthService(provider, db, sessions, logger)

	render, err := handler.NewRenderer(web.Templates, sessions, logger)
	require.NoError(t, err)

	recipeHandler := handler.NewRecipeHandler(recipes, sessions, render, logger, 1<<20)
	authHandler := handler.NewAuthHandler(authService, sessions, render, logger, false)
	uploadHandler := handler.NewUploadHandler(recipes, render)

	r := chi.NewRouter()
	r.Use(auth.LoadSession(sessions, logger))
	r.NotFound(render.NotFound)
	r.Get("/", recipeHandler.HandleIndex)
	r.Get("/login", authHandler.HandleLogin)
	r.Get("/auth", authHandler.HandleCallback)
	r.Get("/logout", authHandler.HandleLogout)
	r.Get("/healthz", handler.NewHealthHandler(db).HandleHealth)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)
		r.Get("/recipe/add", recipeHandler.HandleAddForm)
		r.Post("/recipe/add", recipeHandler.HandleCreate)
		r.Get("/recipe/{id:[0-9]+}", recipeHandler.HandleDetail)
		r.Get("/recipe/edit/{id:[0-9]+}", recipeHandler.HandleEditForm)
		r.Post("/recipe/edit/{id:[0-9]+}", recipeHandler.HandleUpdate)
		r.Post("/recipe/delete/{id:[0-9]+}", recipeHandler.HandleDelete)
		r.Get("/uploads/{name}", uploadHandler.HandleServe)
	})

	return &testApp{t: t, db: db, store: store, router: r}
}

// do sends req with cookies attached and returns the recorded response.
func (a *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

// login runs the real /login → /auth round trip and returns the session
// cookie.
func (a *testApp) login(code string) *http.Cookie {
	a.t.Helper()

	rr := a.get("/login")
	require.Equal(a.t, http.StatusFound, rr.Code)
	state := findCookie(rr, "oauth_state")
	require.NotNil(a.t, state)

	rr = a.get("/auth?code="+code+"&state="+state.Value, state)
	require.Equal(a.t, http.StatusSeeOther, rr.Code)
	require.Equal(a.t, "/", rr.Header().Get("Location"))

	session := findCookie(rr, auth.SessionCookie)
	require.NotNil(a.t, session, "callback should set the session cookie")
	return session
}

// recipes returns userID's stored recipes.
func (a *testApp) recipes(userID string) []model.Recipe {
	a.t.Helper()
	list, err := a.db.ListByUser(context.Background(), userID)
	require.NoError(a.t, err)
	return list
}

// storedKeys lists every object in the image store.
func (a *testApp) storedKeys() []string {
	a.t.Helper()
	objs, err := a.store.List(context.Background())
	require.NoError(a.t, err)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// recipeForm builds a multipart body. An empty imageName sends no file part.
func recipeForm(t *testing.T, fields map[string]string, imageName string, image []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func soupFields() map[string]string {
	return map[string]string{
		"title":        "Soup",
		"category":     "Main",
		"prep_time":    "20 min",
		"ingredients":  "water\nsalt",
		"instructions": "boil",
		"notes":        "",
	}
}

func (a *testApp) post(path string, fields map[string]string, imageName string, session *http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	body, contentType := recipeForm(a.t, fields, imageName, []byte("fake image bytes"))
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return a.do(req, session)
}

// createSoup creates "Soup" with photo.JPG as the logged-in user and returns
// the stored recipe.
func (a *testApp) createSoup(session *http.Cookie, userID string) model.Recipe {
	a.t.Helper()
	rr := a.post("/recipe/add", soupFields(), "photo.JPG", session)
	require.Equal(a.t, http.StatusSeeOther, rr.Code, rr.Body.String())

	list := a.recipes(userID)
	require.Len(a.t, list, 1)
	return list[0]
}
