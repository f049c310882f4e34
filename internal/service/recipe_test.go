package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/upload"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeRecipeRepo is an in-memory repository.RecipeRepository.
type fakeRecipeRepo struct {
	mu      sync.Mutex
	recipes map[int64]model.Recipe
	nextID  int64
	// set to simulate database failures
	createErr error
	updateErr error
}

func newFakeRecipeRepo() *fakeRecipeRepo {
	return &fakeRecipeRepo{recipes: map[int64]model.Recipe{}, nextID: 1}
}

func (f *fakeRecipeRepo) Create(_ context.Context, r *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	r.ID = f.nextID
	f.nextID++
	f.recipes[r.ID] = *r
	return nil
}

func (f *fakeRecipeRepo) GetByID(_ context.Context, id int64) (*model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipes[id]
	if !ok {
		return nil, apperror.NotFound("recipe", strconv.FormatInt(id, 10))
	}
	return &r, nil
}

func (f *fakeRecipeRepo) ListByUser(_ context.Context, userID string) ([]model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Recipe{}
	for _, r := range f.recipes {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeRecipeRepo) Update(_ context.Context, r *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.recipes[r.ID]; !ok {
		return apperror.NotFound("recipe", strconv.FormatInt(r.ID, 10))
	}
	f.recipes[r.ID] = *r
	return nil
}

func (f *fakeRecipeRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recipes[id]; !ok {
		return apperror.NotFound("recipe", strconv.FormatInt(id, 10))
	}
	delete(f.recipes, id)
	return nil
}

func (f *fakeRecipeRepo) GetByImage(_ context.Context, name string) (*model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recipes {
		if r.Image() == name && name != "" {
			return &r, nil
		}
	}
	return nil, apperror.NotFound("image", name)
}

func (f *fakeRecipeRepo) ListImageFilenames(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, r := range f.recipes {
		if r.HasImage() {
			names = append(names, r.Image())
		}
	}
	return names, nil
}

// spyStore wraps a real FSStore, counts calls and can fail Move.
type spyStore struct {
	upload.Store
	mu      sync.Mutex
	calls   int
	moveErr error
}

func (s *spyStore) count() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *spyStore) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	s.count()
	return s.Store.Put(ctx, key, r, size, ct)
}

func (s *spyStore) Move(ctx context.Context, src, dst string) error {
	s.count()
	if s.moveErr != nil {
		return s.moveErr
	}
	return s.Store.Move(ctx, src, dst)
}

func (s *spyStore) Remove(ctx context.Context, key string) error {
	s.count()
	return s.Store.Remove(ctx, key)
}

func (s *spyStore) keys(t *testing.T) []string {
	t.Helper()
	objects, err := s.Store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	keys := []string{}
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	sort.Strings(keys)
	return keys
}

func (s *spyStore) has(t *testing.T, key string) bool {
	t.Helper()
	for _, k := range s.keys(t) {
		if k == key {
			return true
		}
	}
	return false
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRecipeService(t *testing.T) (*RecipeService, *fakeRecipeRepo, *spyStore) {
	t.Helper()
	fs, err := upload.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	store := &spyStore{Store: fs}
	repo := newFakeRecipeRepo()
	logger := newTestLogger()
	return NewRecipeService(repo, upload.NewManager(store, logger), logger), repo, store
}

var (
	alice = model.Identity{UserID: "alice", Name: "Alice"}
	bob   = model.Identity{UserID: "bob", Name: "Bob"}
)

func soupInput() model.RecipeInput {
	return model.RecipeInput{
		Title:        "Soup",
		Category:     model.CategoryMain,
		PrepTime:     "30 min",
		Ingredients:  "water, salt",
		Instructions: "boil",
	}
}

func image(name string) *upload.File {
	return &upload.File{Filename: name, Body: strings.NewReader("image-bytes"), Size: 11}
}

func mustCreate(t *testing.T, svc *RecipeService, who model.Identity, in model.RecipeInput, img *upload.File) *model.Recipe {
	t.Helper()
	r, err := svc.Create(context.Background(), who, in, img)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_WithImage(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)

	r := mustCreate(t, svc, alice, soupInput(), image("photo.JPG"))

	if r.ID == 0 || r.UserID != "alice" {
		t.Errorf("Create() = %+v, want an id owned by alice", r)
	}
	if !r.HasImage() || !strings.HasSuffix(r.Image(), "_photo.JPG") {
		t.Errorf("Image() = %q, want <id>_photo.JPG", r.Image())
	}
	if !store.has(t, r.Image()) {
		t.Errorf("stored objects = %v, want %q", store.keys(t), r.Image())
	}
	if len(store.keys(t)) != 1 {
		t.Errorf("staging leftovers: %v", store.keys(t))
	}
	if len(repo.recipes) != 1 {
		t.Errorf("repo has %d recipes, want 1", len(repo.recipes))
	}
}

func TestCreate_WithoutImage(t *testing.T) {
	svc, _, store := newTestRecipeService(t)

	r := mustCreate(t, svc, alice, soupInput(), nil)

	if r.ImageFilename != nil {
		t.Errorf("ImageFilename = %q, want nil", *r.ImageFilename)
	}
	if store.calls != 0 {
		t.Errorf("store touched %d times for a recipe without image", store.calls)
	}
}

func TestCreate_EmptyFieldsAccepted(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)

	r := mustCreate(t, svc, alice, model.RecipeInput{}, nil)
	if r.Title != "" {
		t.Errorf("Title = %q, want empty", r.Title)
	}
}

func TestCreate_InvalidExtensionPersistsNothing(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)

	for _, name := range []string{"evil.exe", "photo.svg", "noext"} {
		_, err := svc.Create(context.Background(), alice, soupInput(), image(name))
		if !errors.Is(err, apperror.ErrInvalidUpload) {
			t.Errorf("Create(%q) error = %v, want ErrInvalidUpload", name, err)
		}
	}

	if len(repo.recipes) != 0 {
		t.Errorf("repo has %d recipes, want 0", len(repo.recipes))
	}
	if keys := store.keys(t); len(keys) != 0 {
		t.Errorf("store has %v, want nothing", keys)
	}
}

func TestCreate_ExtensionCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)

	for _, name := range []string{"a.PNG", "b.Jpeg", "c.GiF", "d.WEBP", "e.jpg"} {
		if _, err := svc.Create(context.Background(), alice, soupInput(), image(name)); err != nil {
			t.Errorf("Create(%q) error = %v", name, err)
		}
	}
}

func TestCreate_TooLong(t *testing.T) {
	svc, repo, _ := newTestRecipeService(t)

	tests := []struct {
		field string
		in    model.RecipeInput
	}{
		{"title", model.RecipeInput{Title: strings.Repeat("a", MaxTitleLength+1)}},
		{"category", model.RecipeInput{Category: strings.Repeat("a", MaxCategoryLength+1)}},
		{"prep_time", model.RecipeInput{PrepTime: strings.Repeat("a", MaxPrepTimeLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := svc.Create(context.Background(), alice, tt.in, nil)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) || appErr.Field != tt.field {
				t.Errorf("Create() error = %v, want validation error on %s", err, tt.field)
			}
		})
	}

	// Length is counted in characters, not bytes.
	if _, err := svc.Create(context.Background(), alice, model.RecipeInput{Title: strings.Repeat("é", MaxTitleLength)}, nil); err != nil {
		t.Errorf("Create() with %d multi-byte chars error = %v", MaxTitleLength, err)
	}
	if len(repo.recipes) != 1 {
		t.Errorf("repo has %d recipes, want 1", len(repo.recipes))
	}
}

func TestCreate_RowFailureDiscardsStagedImage(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	repo.createErr = errors.New("disk full")

	if _, err := svc.Create(context.Background(), alice, soupInput(), image("a.png")); err == nil {
		t.Fatal("Create() succeeded, want error")
	}
	if keys := store.keys(t); len(keys) != 0 {
		t.Errorf("store has %v after failed insert, want nothing", keys)
	}
}

func TestCreate_CommitFailureRemovesRow(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	store.moveErr = errors.New("bucket unavailable")

	if _, err := svc.Create(context.Background(), alice, soupInput(), image("a.png")); err == nil {
		t.Fatal("Create() succeeded, want error")
	}
	if len(repo.recipes) != 0 {
		t.Errorf("repo has %d recipes, want the row rolled back", len(repo.recipes))
	}
	if keys := store.keys(t); len(keys) != 0 {
		t.Errorf("store has %v, want staged object discarded", keys)
	}
}

// =========================================================================
// LIST / GET TESTS
// =========================================================================

func TestListGrouped(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)
	ctx := context.Background()

	add := func(who model.Identity, title, category string) *model.Recipe {
		in := soupInput()
		in.Title, in.Category = title, category
		return mustCreate(t, svc, who, in, nil)
	}
	add(alice, "Tiramisu", model.CategoryDessert)
	add(alice, "Bruschetta", model.CategoryAppetizer)
	add(alice, "Brownie", model.CategoryDessert)
	add(bob, "Bob's Stew", model.CategoryMain)
	odd := add(alice, "Mystery", "Zzz")

	groups, err := svc.ListGrouped(ctx, alice)
	if err != nil {
		t.Fatalf("ListGrouped() error = %v", err)
	}

	if len(groups) != 4 {
		t.Fatalf("len(groups) = %d, want 4", len(groups))
	}
	if len(groups[1].Recipes) != 0 {
		t.Errorf("Mains = %+v, want empty (bob's recipe must not leak)", groups[1].Recipes)
	}
	desserts := groups[2].Recipes
	if len(desserts) != 2 || desserts[0].Title != "Brownie" || desserts[1].Title != "Tiramisu" {
		t.Errorf("Desserts = %+v, want [Brownie Tiramisu]", desserts)
	}
	for _, g := range groups {
		for _, r := range g.Recipes {
			if r.ID == odd.ID {
				t.Errorf("out-of-set category shown in %s", g.Label)
			}
		}
	}

	// Not listed, but still reachable by id.
	if _, err := svc.Get(ctx, alice, odd.ID); err != nil {
		t.Errorf("Get() of out-of-set category error = %v", err)
	}
}

// A "Main" recipe edited to an unknown category drops out of the grouped
// listing but stays reachable by id.
func TestUpdate_OutOfSetCategoryLeavesListing(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)
	ctx := context.Background()
	r := mustCreate(t, svc, alice, soupInput(), nil)

	in := soupInput()
	in.Category = "Zzz"
	if _, err := svc.Update(ctx, alice, r.ID, in, nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	groups, err := svc.ListGrouped(ctx, alice)
	if err != nil {
		t.Fatalf("ListGrouped() error = %v", err)
	}
	for _, g := range groups {
		if len(g.Recipes) != 0 {
			t.Errorf("%s = %+v, want empty", g.Label, g.Recipes)
		}
	}

	got, err := svc.Get(ctx, alice, r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Category != "Zzz" {
		t.Errorf("Category = %q, want Zzz", got.Category)
	}
}

func TestGet_Ownership(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), nil)

	if _, err := svc.Get(context.Background(), alice, r.ID); err != nil {
		t.Errorf("owner Get() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), bob, r.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("other user Get() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), alice, 9999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown id Get() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), model.Identity{}, r.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("anonymous Get() error = %v, want ErrForbidden", err)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdate_OverwritesFieldsAndKeepsImage(t *testing.T) {
	svc, _, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("a.png"))

	in := soupInput()
	in.Title = "Better Soup"
	in.Notes = ""
	got, err := svc.Update(context.Background(), alice, r.ID, in, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "Better Soup" || got.Image() != r.Image() {
		t.Errorf("Update() = %+v", got)
	}
	if !store.has(t, r.Image()) {
		t.Error("image removed by an update without upload")
	}
}

func TestUpdate_ReplacesImage(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("old.png"))
	oldName := r.Image()

	got, err := svc.Update(context.Background(), alice, r.ID, soupInput(), image("new.gif"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if store.has(t, oldName) {
		t.Errorf("old image %q still stored", oldName)
	}
	if !store.has(t, got.Image()) || !strings.HasSuffix(got.Image(), "_new.gif") {
		t.Errorf("new image %q not stored; have %v", got.Image(), store.keys(t))
	}
	if stored := repo.recipes[r.ID]; stored.Image() != got.Image() {
		t.Errorf("row image = %q, want %q", stored.Image(), got.Image())
	}
}

func TestUpdate_InvalidImageRejectsWholeUpdate(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("keep.png"))

	in := soupInput()
	in.Title = "Changed"
	_, err := svc.Update(context.Background(), alice, r.ID, in, image("virus.exe"))
	if !errors.Is(err, apperror.ErrInvalidUpload) {
		t.Fatalf("Update() error = %v, want ErrInvalidUpload", err)
	}

	stored := repo.recipes[r.ID]
	if stored.Title != "Soup" || stored.Image() != r.Image() {
		t.Errorf("recipe mutated by rejected update: %+v", stored)
	}
	if !store.has(t, r.Image()) {
		t.Error("existing image removed by rejected update")
	}
}

func TestUpdate_CommitFailureRestoresOldImage(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("old.png"))
	store.moveErr = errors.New("bucket unavailable")

	if _, err := svc.Update(context.Background(), alice, r.ID, soupInput(), image("new.png")); err == nil {
		t.Fatal("Update() succeeded, want error")
	}

	stored := repo.recipes[r.ID]
	if stored.Image() != r.Image() {
		t.Errorf("row image = %q, want old %q restored", stored.Image(), r.Image())
	}
	if keys := store.keys(t); len(keys) != 1 || keys[0] != r.Image() {
		t.Errorf("store = %v, want only the old image", keys)
	}
}

func TestUpdate_Ownership(t *testing.T) {
	svc, repo, _ := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), nil)

	in := soupInput()
	in.Title = "Hijacked"
	if _, err := svc.Update(context.Background(), bob, r.ID, in, nil); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update() by other user error = %v, want ErrForbidden", err)
	}
	if repo.recipes[r.ID].Title != "Soup" {
		t.Error("recipe changed by forbidden update")
	}
	if _, err := svc.Update(context.Background(), alice, 404, in, nil); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() unknown id error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REMOVE TESTS
// =========================================================================

func TestRemove_DeletesRowAndImage(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("photo.JPG"))

	title, err := svc.Remove(context.Background(), alice, r.ID)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if title != "Soup" {
		t.Errorf("Remove() title = %q, want Soup", title)
	}
	if _, ok := repo.recipes[r.ID]; ok {
		t.Error("row still present")
	}
	if keys := store.keys(t); len(keys) != 0 {
		t.Errorf("store = %v, want empty", keys)
	}
}

func TestRemove_WithoutImageNeverTouchesStore(t *testing.T) {
	svc, _, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), nil)

	if _, err := svc.Remove(context.Background(), alice, r.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if store.calls != 0 {
		t.Errorf("store touched %d times", store.calls)
	}
}

func TestRemove_MissingFileTolerated(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("a.png"))
	if err := store.Store.Remove(context.Background(), r.Image()); err != nil {
		t.Fatalf("removing file behind the service's back: %v", err)
	}

	if _, err := svc.Remove(context.Background(), alice, r.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := repo.recipes[r.ID]; ok {
		t.Error("row still present")
	}
}

func TestRemove_OtherUserForbiddenAndNothingChanges(t *testing.T) {
	svc, repo, store := newTestRecipeService(t)
	r := mustCreate(t, svc, alice, soupInput(), image("a.png"))

	if _, err := svc.Remove(context.Background(), bob, r.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Remove() by other user error = %v, want ErrForbidden", err)
	}
	if _, ok := repo.recipes[r.ID]; !ok {
		t.Error("row deleted by forbidden remove")
	}
	if !store.has(t, r.Image()) {
		t.Error("image deleted by forbidden remove")
	}
}

func TestReferencedImages(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)
	with := mustCreate(t, svc, alice, soupInput(), image("a.png"))
	mustCreate(t, svc, bob, soupInput(), nil)

	set, err := svc.ReferencedImages(context.Background())
	if err != nil {
		t.Fatalf("ReferencedImages() error = %v", err)
	}
	if _, ok := set[with.Image()]; !ok || len(set) != 1 {
		t.Errorf("ReferencedImages() = %v, want {%s}", set, with.Image())
	}
}

func TestOpenImage_OwnerOnly(t *testing.T) {
	svc, _, _ := newTestRecipeService(t)
	ctx := context.Background()
	r := mustCreate(t, svc, alice, soupInput(), image("cake.png"))

	body, obj, err := svc.OpenImage(ctx, alice, r.Image())
	if err != nil {
		t.Fatalf("owner OpenImage() error = %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "image-bytes" || obj.Key != r.Image() {
		t.Errorf("OpenImage() = %q (%s), want image-bytes (%s)", data, obj.Key, r.Image())
	}

	tests := []struct {
		name string
		who  model.Identity
		file string
	}{
		{"other user", bob, r.Image()},
		{"anonymous", model.Identity{}, r.Image()},
		{"unreferenced name", alice, "nobody.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.OpenImage(ctx, tt.who, tt.file); !errors.Is(err, apperror.ErrNotFound) {
				t.Errorf("OpenImage() error = %v, want ErrNotFound", err)
			}
		})
	}
}
