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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
	"github.com/malulos-pos/api/internal/handler"
)

// --- Mock store ---

type mockTableStore struct {
	tables map[uuid.UUID]database.Table
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{tables: make(map[uuid.UUID]database.Table)}
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.Table, error) {
	for _, t := range m.tables {
		if t.Number == arg.Number {
			return database.Table{}, &pgconn.PgError{Code: "23505"}
		}
	}
	t := database.Table{
		ID:        uuid.New(),
		Number:    arg.Number,
		Name:      arg.Name,
		Capacity:  arg.Capacity,
		Status:    enum.TableStatusAvailable,
		GridX:     arg.GridX,
		GridY:     arg.GridY,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.tables[t.ID] = t
	return t, nil
}

func (m *mockTableStore) GetTable(_ context.Context, id uuid.UUID) (database.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTableStore) ListTables(_ context.Context) ([]database.Table, error) {
	var result []database.Table
	for _, t := range m.tables {
		result = append(result, t)
	}
	return result, nil
}

func (m *mockTableStore) UpdateTable(_ context.Context, arg database.UpdateTableParams) (database.Table, error) {
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Number = arg.Number
	t.Name = arg.Name
	t.Capacity = arg.Capacity
	m.tables[arg.ID] = t
	return t, nil
}

func (m *mockTableStore) UpdateTablePosition(_ context.Context, arg database.UpdateTablePositionParams) (database.Table, error) {
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.GridX = arg.GridX
	t.GridY = arg.GridY
	m.tables[arg.ID] = t
	return t, nil
}

func (m *mockTableStore) SetTableStatus(_ context.Context, id uuid.UUID, status string) (database.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = status
	m.tables[id] = t
	return t, nil
}

func (m *mockTableStore) DeleteTable(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	t, ok := m.tables[id]
	if !ok || t.CurrentOrderID.Valid {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.tables, id)
	return id, nil
}

func newTableRouter(store handler.TableStore) http.Handler {
	h := handler.NewTableHandler(store)
	r := chi.NewRouter()
	r.Route("/tables", h.RegisterRoutes)
	return r
}

func seedTable(t *testing.T, store *mockTableStore, number int32) database.Table {
	t.Helper()
	table, err := store.CreateTable(context.Background(), database.CreateTableParams{
		Number:   number,
		Name:     "Mesa",
		Capacity: 4,
	})
	if err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return table
}

// --- Tests ---

func TestCreateTable_Success(t *testing.T) {
	store := newMockTableStore()
	router := newTableRouter(store)

	rr := postJSON(t, router, "/tables", map[string]interface{}{
		"number":   5,
		"name":     "Terraza 1",
		"capacity": 6,
		"grid_x":   2,
		"grid_y":   3,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.TableStatusAvailable {
		t.Errorf("status: got %v, want available", resp["status"])
	}
	if resp["current_order_id"] != nil {
		t.Errorf("current_order_id: got %v, want null", resp["current_order_id"])
	}
}

func TestCreateTable_Validation(t *testing.T) {
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"zero number", map[string]interface{}{"number": 0, "capacity": 4}},
		{"zero capacity", map[string]interface{}{"number": 1, "capacity": 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTableRouter(newMockTableStore())
			rr := postJSON(t, router, "/tables", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestCreateTable_DuplicateNumber(t *testing.T) {
	store := newMockTableStore()
	seedTable(t, store, 5)

	router := newTableRouter(store)
	rr := postJSON(t, router, "/tables", map[string]interface{}{
		"number":   5,
		"capacity": 4,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestListTables(t *testing.T) {
	store := newMockTableStore()
	seedTable(t, store, 1)
	seedTable(t, store, 2)

	router := newTableRouter(store)
	req := httptest.NewRequest("GET", "/tables", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(resp))
	}
}

func TestUpdateTable_Success(t *testing.T) {
	store := newMockTableStore()
	table := seedTable(t, store, 1)

	router := newTableRouter(store)
	b, _ := json.Marshal(map[string]interface{}{
		"number":   1,
		"name":     "Ventana",
		"capacity": 2,
	})
	req := httptest.NewRequest("PUT", "/tables/"+table.ID.String(), bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["name"] != "Ventana" {
		t.Errorf("name: got %v, want Ventana", resp["name"])
	}
}

func TestUpdateTable_NotFound(t *testing.T) {
	router := newTableRouter(newMockTableStore())
	b, _ := json.Marshal(map[string]interface{}{"number": 1, "capacity": 4})
	req := httptest.NewRequest("PUT", "/tables/"+uuid.NewString(), bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateTablePosition(t *testing.T) {
	store := newMockTableStore()
	table := seedTable(t, store, 1)

	router := newTableRouter(store)
	b, _ := json.Marshal(map[string]interface{}{"grid_x": 7, "grid_y": 9})
	req := httptest.NewRequest("PATCH", "/tables/"+table.ID.String()+"/position", bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["grid_x"] != float64(7) || resp["grid_y"] != float64(9) {
		t.Errorf("position: got (%v, %v), want (7, 9)", resp["grid_x"], resp["grid_y"])
	}
}

func TestUpdateTableStatus_Manual(t *testing.T) {
	store := newMockTableStore()
	table := seedTable(t, store, 1)

	router := newTableRouter(store)
	b, _ := json.Marshal(map[string]string{"status": "reserved"})
	req := httptest.NewRequest("PATCH", "/tables/"+table.ID.String()+"/status", bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.TableStatusReserved {
		t.Errorf("table status: got %v, want reserved", resp["status"])
	}
}

func TestUpdateTableStatus_OccupiedRejected(t *testing.T) {
	store := newMockTableStore()
	table := seedTable(t, store, 1)

	router := newTableRouter(store)
	b, _ := json.Marshal(map[string]string{"status": "occupied"})
	req := httptest.NewRequest("PATCH", "/tables/"+table.ID.String()+"/status", bytes.NewReader(b))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDeleteTable_Success(t *testing.T) {
	store := newMockTableStore()
	table := seedTable(t, store, 1)

	router := newTableRouter(store)
	req := httptest.NewRequest("DELETE", "/tables/"+table.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if _, ok := store.tables[table.ID]; ok {
		t.Error("expected table removed")
	}
}

func TestDeleteTable_WithOpenOrderConflicts(t *testing.T) {
	store := newMockTableStore()
	table := seedTable(t, store, 1)
	table.CurrentOrderID = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store.tables[table.ID] = table

	router := newTableRouter(store)
	req := httptest.NewRequest("DELETE", "/tables/"+table.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDeleteTable_NotFound(t *testing.T) {
	router := newTableRouter(newMockTableStore())
	req := httptest.NewRequest("DELETE", "/tables/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
