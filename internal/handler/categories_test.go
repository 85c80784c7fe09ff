package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/handler"
)

// --- Mock store ---

type mockCategoryStore struct {
	categories map[uuid.UUID]database.Category
}

func newMockCategoryStore() *mockCategoryStore {
	return &mockCategoryStore{categories: make(map[uuid.UUID]database.Category)}
}

func (m *mockCategoryStore) ListCategories(_ context.Context, onlyActive bool) ([]database.Category, error) {
	var result []database.Category
	for _, c := range m.categories {
		if onlyActive && !c.IsActive {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (m *mockCategoryStore) CreateCategory(_ context.Context, name string, sortOrder int32) (database.Category, error) {
	c := database.Category{
		ID:        uuid.New(),
		Name:      name,
		SortOrder: sortOrder,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockCategoryStore) UpdateCategory(_ context.Context, arg database.UpdateCategoryParams) (database.Category, error) {
	c, ok := m.categories[arg.ID]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	c.SortOrder = arg.SortOrder
	c.IsActive = arg.IsActive
	m.categories[arg.ID] = c
	return c, nil
}

func (m *mockCategoryStore) SoftDeleteCategory(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, ok := m.categories[id]
	if !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	c.IsActive = false
	m.categories[id] = c
	return id, nil
}

func newCategoryRouter(store handler.CategoryStore) http.Handler {
	h := handler.NewCategoryHandler(store)
	r := chi.NewRouter()
	r.Route("/categories", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestListCategories_ExcludesInactiveByDefault(t *testing.T) {
	store := newMockCategoryStore()
	store.CreateCategory(context.Background(), "Platos fuertes", 1)
	inactive, _ := store.CreateCategory(context.Background(), "Descontinuados", 9)
	store.SoftDeleteCategory(context.Background(), inactive.ID)

	router := newCategoryRouter(store)
	req := httptest.NewRequest("GET", "/categories", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 active category, got %d", len(resp))
	}
	if resp[0]["name"] != "Platos fuertes" {
		t.Errorf("name: got %v, want Platos fuertes", resp[0]["name"])
	}
}

func TestListCategories_AllIncludesInactive(t *testing.T) {
	store := newMockCategoryStore()
	store.CreateCategory(context.Background(), "Bebidas", 2)
	inactive, _ := store.CreateCategory(context.Background(), "Descontinuados", 9)
	store.SoftDeleteCategory(context.Background(), inactive.ID)

	router := newCategoryRouter(store)
	req := httptest.NewRequest("GET", "/categories?all=true", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(resp))
	}
}

func TestCreateCategory_Success(t *testing.T) {
	store := newMockCategoryStore()
	router := newCategoryRouter(store)

	rr := postJSON(t, router, "/categories", map[string]interface{}{
		"name":       "Postres",
		"sort_order": 5,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["name"] != "Postres" {
		t.Errorf("name: got %v, want Postres", resp["name"])
	}
	if resp["is_active"] != true {
		t.Error("expected new category to be active")
	}
}

func TestCreateCategory_MissingName(t *testing.T) {
	router := newCategoryRouter(newMockCategoryStore())

	rr := postJSON(t, router, "/categories", map[string]interface{}{
		"sort_order": 1,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateCategory_Success(t *testing.T) {
	store := newMockCategoryStore()
	cat, _ := store.CreateCategory(context.Background(), "Bebdias", 2)

	router := newCategoryRouter(store)
	b, _ := json.Marshal(map[string]interface{}{"name": "Bebidas", "sort_order": 2})
	req := httptest.NewRequest("PUT", "/categories/"+cat.ID.String(), bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["name"] != "Bebidas" {
		t.Errorf("name: got %v, want Bebidas", resp["name"])
	}
}

func TestUpdateCategory_NotFound(t *testing.T) {
	router := newCategoryRouter(newMockCategoryStore())
	b, _ := json.Marshal(map[string]interface{}{"name": "Nada"})
	req := httptest.NewRequest("PUT", "/categories/"+uuid.NewString(), bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDeleteCategory_SoftDeletes(t *testing.T) {
	store := newMockCategoryStore()
	cat, _ := store.CreateCategory(context.Background(), "Sopas", 3)

	router := newCategoryRouter(store)
	req := httptest.NewRequest("DELETE", "/categories/"+cat.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if store.categories[cat.ID].IsActive {
		t.Error("expected category to be deactivated")
	}
}

func TestDeleteCategory_NotFound(t *testing.T) {
	router := newCategoryRouter(newMockCategoryStore())
	req := httptest.NewRequest("DELETE", "/categories/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
