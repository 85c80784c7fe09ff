package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/handler"
)

// --- Mock store ---

type mockReportStore struct {
	dailyFn    func(ctx context.Context, arg database.DateRangeParams) ([]database.DailySalesRow, error)
	hourlyFn   func(ctx context.Context, arg database.DateRangeParams) ([]database.HourlySalesRow, error)
	categoryFn func(ctx context.Context, arg database.DateRangeParams) ([]database.CategorySalesRow, error)
	paymentFn  func(ctx context.Context, arg database.DateRangeParams) ([]database.PaymentSummaryRow, error)
	topFn      func(ctx context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error)
}

func (m *mockReportStore) GetDailySales(ctx context.Context, arg database.DateRangeParams) ([]database.DailySalesRow, error) {
	return m.dailyFn(ctx, arg)
}

func (m *mockReportStore) GetHourlySales(ctx context.Context, arg database.DateRangeParams) ([]database.HourlySalesRow, error) {
	return m.hourlyFn(ctx, arg)
}

func (m *mockReportStore) GetCategorySales(ctx context.Context, arg database.DateRangeParams) ([]database.CategorySalesRow, error) {
	return m.categoryFn(ctx, arg)
}

func (m *mockReportStore) GetPaymentSummary(ctx context.Context, arg database.DateRangeParams) ([]database.PaymentSummaryRow, error) {
	return m.paymentFn(ctx, arg)
}

func (m *mockReportStore) GetTopProducts(ctx context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error) {
	return m.topFn(ctx, arg)
}

func newReportRouter(store handler.ReportStore) http.Handler {
	h := handler.NewReportHandler(store)
	r := chi.NewRouter()
	r.Route("/reports", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestDailySales_ExplicitRange(t *testing.T) {
	store := &mockReportStore{
		dailyFn: func(_ context.Context, arg database.DateRangeParams) ([]database.DailySalesRow, error) {
			if arg.StartDate.Time.Format("2006-01-02") != "2026-08-01" {
				t.Errorf("start: got %v", arg.StartDate.Time)
			}
			// end_date is inclusive: the query bound is the next day.
			if arg.EndDate.Time.Format("2006-01-02") != "2026-08-08" {
				t.Errorf("end: got %v", arg.EndDate.Time)
			}
			return []database.DailySalesRow{
				{
					SaleDate:      pgtype.Date{Time: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), Valid: true},
					OrderCount:    42,
					TotalRevenue:  makeOrderNumeric(t, "1250000.00"),
					TotalDiscount: makeOrderNumeric(t, "30000.00"),
				},
			}, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/daily?start_date=2026-08-01&end_date=2026-08-07", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 row, got %d", len(resp))
	}
	if resp[0]["date"] != "2026-08-03" {
		t.Errorf("date: got %v", resp[0]["date"])
	}
	if resp[0]["total_revenue"] != "1250000.00" {
		t.Errorf("total_revenue: got %v", resp[0]["total_revenue"])
	}
	if resp[0]["order_count"] != float64(42) {
		t.Errorf("order_count: got %v", resp[0]["order_count"])
	}
}

func TestDailySales_DefaultsToToday(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	store := &mockReportStore{
		dailyFn: func(_ context.Context, arg database.DateRangeParams) ([]database.DailySalesRow, error) {
			if arg.StartDate.Time.Format("2006-01-02") != today {
				t.Errorf("start: got %v, want %s", arg.StartDate.Time, today)
			}
			return nil, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/daily", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestDailySales_BadDate(t *testing.T) {
	router := newReportRouter(&mockReportStore{})
	req := httptest.NewRequest("GET", "/reports/daily?start_date=last-week", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHourlySales(t *testing.T) {
	store := &mockReportStore{
		hourlyFn: func(_ context.Context, _ database.DateRangeParams) ([]database.HourlySalesRow, error) {
			return []database.HourlySalesRow{
				{Hour: 12, OrderCount: 15, TotalRevenue: makeOrderNumeric(t, "420000.00")},
				{Hour: 19, OrderCount: 22, TotalRevenue: makeOrderNumeric(t, "615000.00")},
			}, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/hourly", nil)
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
		t.Fatalf("expected 2 rows, got %d", len(resp))
	}
	if resp[1]["hour"] != float64(19) {
		t.Errorf("hour: got %v, want 19", resp[1]["hour"])
	}
}

func TestCategorySales(t *testing.T) {
	catID := uuid.New()
	store := &mockReportStore{
		categoryFn: func(_ context.Context, _ database.DateRangeParams) ([]database.CategorySalesRow, error) {
			return []database.CategorySalesRow{
				{CategoryID: catID, CategoryName: "Platos fuertes", QuantitySold: 80, TotalRevenue: makeOrderNumeric(t, "2100000.00")},
			}, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/categories", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp[0]["category_name"] != "Platos fuertes" {
		t.Errorf("category_name: got %v", resp[0]["category_name"])
	}
	if resp[0]["total_revenue"] != "2100000.00" {
		t.Errorf("total_revenue: got %v", resp[0]["total_revenue"])
	}
}

func TestPaymentSummary(t *testing.T) {
	store := &mockReportStore{
		paymentFn: func(_ context.Context, _ database.DateRangeParams) ([]database.PaymentSummaryRow, error) {
			return []database.PaymentSummaryRow{
				{PaymentMethod: "cash", OrderCount: 30, TotalAmount: makeOrderNumeric(t, "900000.00")},
				{PaymentMethod: "nequi", OrderCount: 12, TotalAmount: makeOrderNumeric(t, "350000.00")},
			}, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/payment-methods", nil)
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
		t.Fatalf("expected 2 rows, got %d", len(resp))
	}
	if resp[0]["payment_method"] != "cash" {
		t.Errorf("payment_method: got %v", resp[0]["payment_method"])
	}
}

func TestTopProducts_DefaultLimit(t *testing.T) {
	store := &mockReportStore{
		topFn: func(_ context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error) {
			if arg.Limit != 10 {
				t.Errorf("limit: got %d, want 10", arg.Limit)
			}
			return []database.TopProductRow{
				{ProductID: uuid.New(), ProductName: "Bandeja Paisa", QuantitySold: 64, TotalRevenue: makeOrderNumeric(t, "1792000.00")},
			}, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/top-products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp[0]["product_name"] != "Bandeja Paisa" {
		t.Errorf("product_name: got %v", resp[0]["product_name"])
	}
}

func TestTopProducts_LimitCappedAt50(t *testing.T) {
	store := &mockReportStore{
		topFn: func(_ context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error) {
			if arg.Limit != 50 {
				t.Errorf("limit: got %d, want 50", arg.Limit)
			}
			return nil, nil
		},
	}
	router := newReportRouter(store)
	req := httptest.NewRequest("GET", "/reports/top-products?limit=500", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}
