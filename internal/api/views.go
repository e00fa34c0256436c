package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
	"github.com/smefin/finhealth/internal/metrics"
	"github.com/smefin/finhealth/internal/store"
)

// txnView is the JSON shape of a canonical transaction. Amounts leave the
// API as plain numbers rounded to 2 decimal places.
type txnView struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Direction   string  `json:"direction"`
	Amount      float64 `json:"amount"`
}

type ingestResponse struct {
	RowCount     int       `json:"row_count"`
	Transactions []txnView `json:"transactions"`
	Committed    bool      `json:"committed"`
}

type invoiceResponse struct {
	VendorName    string   `json:"vendor_name"`
	GSTIN         string   `json:"gstin"`
	InvoiceNumber string   `json:"invoice_number"`
	InvoiceDate   string   `json:"invoice_date,omitempty"`
	Total         *float64 `json:"total"`
	NoData        bool     `json:"no_data"`
	Transaction   *txnView `json:"transaction,omitempty"`
	Committed     bool     `json:"committed"`
}

type kpiView struct {
	TotalTransactions int      `json:"total_transactions"`
	TotalInflow       float64  `json:"total_inflow"`
	TotalOutflow      float64  `json:"total_outflow"`
	Revenue           float64  `json:"revenue"`
	Expenses          float64  `json:"expenses"`
	NetCashflow       float64  `json:"net_cashflow"`
	Profit            float64  `json:"profit"`
	ExpenseRatio      *float64 `json:"expense_ratio"`
}

type monthlyView struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
}

type gstMonthlyView struct {
	Month     string  `json:"month"`
	Sales     float64 `json:"gst_sales"`
	Purchases float64 `json:"gst_purchases"`
}

type forecastView struct {
	Month       string  `json:"month"`
	Revenue     float64 `json:"revenue"`
	NetCashflow float64 `json:"net_cashflow"`
}

func toTxnView(t canonical.Transaction) txnView {
	return txnView{
		Date:        t.Date.Format("2006-01-02"),
		Description: t.Description,
		Category:    t.Category,
		Direction:   string(t.Direction),
		Amount:      round2(t.Amount),
	}
}

func toTxnViews(txns []canonical.Transaction) []txnView {
	views := make([]txnView, 0, len(txns))
	for _, t := range txns {
		views = append(views, toTxnView(t))
	}
	return views
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// expensePolicy reads the optional expense_policy query parameter. Anything
// other than "category" keeps the all-debits default.
func expensePolicy(r *http.Request) metrics.ExpensePolicy {
	if r.URL.Query().Get("expense_policy") == "category" {
		return metrics.ExpenseCategoryFiltered
	}
	return metrics.ExpenseAllDebits
}

// requireUser extracts the acting user from the X-User-ID header and writes
// a 401 when it is absent.
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
	}
	return userID
}

func writeOwnershipError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, "business not found")
	case errors.Is(err, store.ErrNotOwner):
		writeError(w, http.StatusForbidden, "you do not own this business")
	default:
		writeError(w, http.StatusInternalServerError, "could not load business")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
