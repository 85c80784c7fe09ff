package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/malulos-pos/api/internal/database"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	GetDailySales(ctx context.Context, arg database.DateRangeParams) ([]database.DailySalesRow, error)
	GetHourlySales(ctx context.Context, arg database.DateRangeParams) ([]database.HourlySalesRow, error)
	GetCategorySales(ctx context.Context, arg database.DateRangeParams) ([]database.CategorySalesRow, error)
	GetPaymentSummary(ctx context.Context, arg database.DateRangeParams) ([]database.PaymentSummaryRow, error)
	GetTopProducts(ctx context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error)
}

// ReportHandler handles sales report endpoints. Reports only count
// settled orders: paid, and completed or delivered.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.DailySales)
	r.Get("/hourly", h.HourlySales)
	r.Get("/categories", h.CategorySales)
	r.Get("/payment-methods", h.PaymentSummary)
	r.Get("/top-products", h.TopProducts)
}

// --- Response types ---

type dailySalesResponse struct {
	Date          string `json:"date"`
	OrderCount    int64  `json:"order_count"`
	TotalRevenue  string `json:"total_revenue"`
	TotalDiscount string `json:"total_discount"`
}

type hourlySalesResponse struct {
	Hour         int32  `json:"hour"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

type categorySalesResponse struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

type paymentSummaryResponse struct {
	PaymentMethod string `json:"payment_method"`
	OrderCount    int64  `json:"order_count"`
	TotalAmount   string `json:"total_amount"`
}

type topProductResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

// --- Helpers ---

// parseDateRange reads start_date/end_date query params (YYYY-MM-DD).
// Defaults to today. end_date is inclusive, so the query range extends
// to the following midnight.
func parseDateRange(r *http.Request) (database.DateRangeParams, bool) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return database.DateRangeParams{}, false
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return database.DateRangeParams{}, false
		}
		end = t.AddDate(0, 0, 1)
	}

	return database.DateRangeParams{
		StartDate: pgtype.Timestamptz{Time: start, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: end, Valid: true},
	}, true
}

func writeBadDateRange(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
}

// --- Handlers ---

// DailySales handles GET /reports/daily.
func (h *ReportHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	params, ok := parseDateRange(r)
	if !ok {
		writeBadDateRange(w)
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: daily sales report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = dailySalesResponse{
			Date:          row.SaleDate.Time.Format("2006-01-02"),
			OrderCount:    row.OrderCount,
			TotalRevenue:  numericToString(row.TotalRevenue),
			TotalDiscount: numericToString(row.TotalDiscount),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HourlySales handles GET /reports/hourly: order volume by hour of day.
func (h *ReportHandler) HourlySales(w http.ResponseWriter, r *http.Request) {
	params, ok := parseDateRange(r)
	if !ok {
		writeBadDateRange(w)
		return
	}

	rows, err := h.store.GetHourlySales(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: hourly sales report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]hourlySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = hourlySalesResponse{
			Hour:         row.Hour,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CategorySales handles GET /reports/categories.
func (h *ReportHandler) CategorySales(w http.ResponseWriter, r *http.Request) {
	params, ok := parseDateRange(r)
	if !ok {
		writeBadDateRange(w)
		return
	}

	rows, err := h.store.GetCategorySales(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: category sales report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categorySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = categorySalesResponse{
			CategoryID:   row.CategoryID,
			CategoryName: row.CategoryName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// PaymentSummary handles GET /reports/payment-methods.
func (h *ReportHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	params, ok := parseDateRange(r)
	if !ok {
		writeBadDateRange(w)
		return
	}

	rows, err := h.store.GetPaymentSummary(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: payment summary report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = paymentSummaryResponse{
			PaymentMethod: row.PaymentMethod,
			OrderCount:    row.OrderCount,
			TotalAmount:   numericToString(row.TotalAmount),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// TopProducts handles GET /reports/top-products?limit=N (default 10).
func (h *ReportHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := parseDateRange(r)
	if !ok {
		writeBadDateRange(w)
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 50 {
		limit = 50
	}

	rows, err := h.store.GetTopProducts(r.Context(), database.TopProductsParams{
		StartDate: dateRange.StartDate,
		EndDate:   dateRange.EndDate,
		Limit:     int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: top products report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]topProductResponse, len(rows))
	for i, row := range rows {
		resp[i] = topProductResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
