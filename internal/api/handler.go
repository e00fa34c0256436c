// Package api exposes the HTTP surface: business lifecycle, file and text
// uploads with preview/commit, and the derived metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/smefin/finhealth/internal/canonical"
	"github.com/smefin/finhealth/internal/extractor"
	"github.com/smefin/finhealth/internal/ingest"
	"github.com/smefin/finhealth/internal/metrics"
	"github.com/smefin/finhealth/internal/reader"
	"github.com/smefin/finhealth/internal/store"
	"github.com/smefin/finhealth/internal/textparse"
)

const maxUploadBytes = 32 << 20

// Store is the persistence surface the handlers need. *store.Store satisfies
// it; tests substitute a fake.
type Store interface {
	CreateBusiness(ctx context.Context, name, userID string) (store.Business, error)
	RequireBusinessOwner(ctx context.Context, id uuid.UUID, userID string) (store.Business, error)
	DeleteBusiness(ctx context.Context, id uuid.UUID) error
	InsertTransactions(ctx context.Context, businessID uuid.UUID, txns []canonical.Transaction) (int, error)
	ListTransactions(ctx context.Context, businessID uuid.UUID) ([]canonical.Transaction, error)
	InsertInvoice(ctx context.Context, businessID uuid.UUID, inv textparse.Invoice) (int64, error)
	LogAudit(ctx context.Context, businessID uuid.UUID, userID, action, detail string) error
	ListAudit(ctx context.Context, businessID uuid.UUID, limit int) ([]store.AuditEntry, error)
}

// Handler wires the routes to the store.
type Handler struct {
	Store   Store
	Log     zerolog.Logger
	Version string
}

// Routes builds the router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/api/health", h.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/business", h.handleCreateBusiness).Methods(http.MethodPost)
	r.HandleFunc("/api/business/{id}", h.handleDeleteBusiness).Methods(http.MethodDelete)

	b := r.PathPrefix("/api/business/{id}").Subrouter()
	b.HandleFunc("/upload/preview", h.withBusiness(h.handleUploadTable(false))).Methods(http.MethodPost)
	b.HandleFunc("/upload/commit", h.withBusiness(h.handleUploadTable(true))).Methods(http.MethodPost)
	b.HandleFunc("/upload/pdf/preview", h.withBusiness(h.handleUploadStatement(false))).Methods(http.MethodPost)
	b.HandleFunc("/upload/pdf/commit", h.withBusiness(h.handleUploadStatement(true))).Methods(http.MethodPost)
	b.HandleFunc("/invoice/ocr/preview", h.withBusiness(h.handleInvoice(false))).Methods(http.MethodPost)
	b.HandleFunc("/invoice/ocr/commit", h.withBusiness(h.handleInvoice(true))).Methods(http.MethodPost)
	b.HandleFunc("/gst/import", h.withBusiness(h.handleGSTImport)).Methods(http.MethodPost)
	b.HandleFunc("/gst/summary", h.withBusiness(h.handleGSTSummary)).Methods(http.MethodGet)

	b.HandleFunc("/transactions", h.withBusiness(h.handleListTransactions)).Methods(http.MethodGet)
	b.HandleFunc("/metrics/kpis", h.withBusiness(h.handleKPIs)).Methods(http.MethodGet)
	b.HandleFunc("/metrics/monthly", h.withBusiness(h.handleMonthly)).Methods(http.MethodGet)
	b.HandleFunc("/metrics/score", h.withBusiness(h.handleScore)).Methods(http.MethodGet)
	b.HandleFunc("/metrics/risks", h.withBusiness(h.handleRisks)).Methods(http.MethodGet)
	b.HandleFunc("/metrics/recommendations", h.withBusiness(h.handleRecommendations)).Methods(http.MethodGet)
	b.HandleFunc("/metrics/forecast", h.withBusiness(h.handleForecast)).Methods(http.MethodGet)
	b.HandleFunc("/audit", h.withBusiness(h.handleAudit)).Methods(http.MethodGet)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
	})
}

func (h *Handler) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "a non-empty business name is required")
		return
	}
	b, err := h.Store.CreateBusiness(r.Context(), strings.TrimSpace(req.Name), userID)
	if err != nil {
		h.Log.Error().Err(err).Msg("create business failed")
		writeError(w, http.StatusInternalServerError, "could not create business")
		return
	}
	h.audit(r.Context(), b.ID, userID, "business.create", b.Name)
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleDeleteBusiness(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid business id")
		return
	}
	if _, err := h.Store.RequireBusinessOwner(r.Context(), id, userID); err != nil {
		writeOwnershipError(w, err)
		return
	}
	if err := h.Store.DeleteBusiness(r.Context(), id); err != nil {
		h.Log.Error().Err(err).Stringer("business", id).Msg("delete business failed")
		writeError(w, http.StatusInternalServerError, "could not delete business")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// withBusiness resolves the business id, checks ownership and hands the
// business to the wrapped handler.
func (h *Handler) withBusiness(next func(http.ResponseWriter, *http.Request, store.Business, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUser(w, r)
		if userID == "" {
			return
		}
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid business id")
			return
		}
		b, err := h.Store.RequireBusinessOwner(r.Context(), id, userID)
		if err != nil {
			writeOwnershipError(w, err)
			return
		}
		next(w, r, b, userID)
	}
}

// handleUploadTable ingests a tabular file (CSV, XLSX or XLS). Preview
// returns the normalized batch without persisting; commit stores it.
func (h *Handler) handleUploadTable(commit bool) func(http.ResponseWriter, *http.Request, store.Business, string) {
	return func(w http.ResponseWriter, r *http.Request, b store.Business, userID string) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "a file upload is required")
			return
		}
		defer file.Close()

		table, err := reader.ReadTable(header.Filename, file)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("could not read %s: %v", header.Filename, err))
			return
		}
		result, err := ingest.IngestTable(table)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.finishIngest(w, r, b, userID, commit, result.Batch, "upload.table", header.Filename)
	}
}

// handleUploadStatement ingests bank-statement text, either the text layer
// of an uploaded PDF or pre-extracted text (for scanned documents the OCR
// runs elsewhere and the text arrives in the extractedText field).
func (h *Handler) handleUploadStatement(commit bool) func(http.ResponseWriter, *http.Request, store.Business, string) {
	return func(w http.ResponseWriter, r *http.Request, b store.Business, userID string) {
		lines, source, err := h.statementLines(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		result := ingest.IngestStatementText(lines)
		h.finishIngest(w, r, b, userID, commit, result.Batch, "upload.statement", source)
	}
}

func (h *Handler) statementLines(r *http.Request) ([]string, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", errors.New("invalid multipart form")
	}
	if text := r.FormValue("extractedText"); strings.TrimSpace(text) != "" {
		return extractor.Lines([]string{text}), "extractedText", nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("either a PDF file or an extractedText field is required")
	}
	defer file.Close()

	if !strings.EqualFold(ext(header.Filename), ".pdf") {
		return nil, "", fmt.Errorf("unsupported file type %q: image uploads must arrive as extractedText after OCR", ext(header.Filename))
	}
	pages, err := h.extractPDF(file)
	if err != nil {
		return nil, "", err
	}
	return extractor.Lines(pages), header.Filename, nil
}

// extractPDF spools the upload to a temp file because the PDF library needs
// random access by path.
func (h *Handler) extractPDF(file io.Reader) ([]string, error) {
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("could not buffer upload: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		return nil, fmt.Errorf("could not buffer upload: %w", err)
	}
	return extractor.ExtractText(tmp.Name())
}

// handleInvoice parses a single invoice document into its implied expense
// transaction.
func (h *Handler) handleInvoice(commit bool) func(http.ResponseWriter, *http.Request, store.Business, string) {
	return func(w http.ResponseWriter, r *http.Request, b store.Business, userID string) {
		doc, source, err := h.invoiceText(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		inv := textparse.ParseInvoiceText(doc)
		txn, ok := ingest.InvoiceTransaction(inv, time.Now().UTC())

		resp := invoiceResponse{
			VendorName:    inv.VendorName,
			GSTIN:         inv.GSTIN,
			InvoiceNumber: inv.Number,
			NoData:        inv.NoData(),
		}
		if !inv.Date.IsZero() {
			resp.InvoiceDate = inv.Date.Format("2006-01-02")
		}
		if inv.HasTotal {
			v := inv.Total.Round(2).InexactFloat64()
			resp.Total = &v
		}
		if ok {
			tv := toTxnView(txn)
			resp.Transaction = &tv
		}

		if commit && ok {
			if _, err := h.Store.InsertInvoice(r.Context(), b.ID, inv); err != nil {
				h.Log.Error().Err(err).Stringer("business", b.ID).Msg("invoice insert failed")
				writeError(w, http.StatusInternalServerError, "could not store invoice")
				return
			}
			if _, err := h.Store.InsertTransactions(r.Context(), b.ID, []canonical.Transaction{txn}); err != nil {
				h.Log.Error().Err(err).Stringer("business", b.ID).Msg("invoice transaction insert failed")
				writeError(w, http.StatusInternalServerError, "could not store transactions")
				return
			}
			h.audit(r.Context(), b.ID, userID, "invoice.commit", source)
			resp.Committed = true
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) invoiceText(r *http.Request) (string, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", errors.New("invalid multipart form")
	}
	if text := r.FormValue("extractedText"); strings.TrimSpace(text) != "" {
		return text, "extractedText", nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", errors.New("either a PDF file or an extractedText field is required")
	}
	defer file.Close()

	if !strings.EqualFold(ext(header.Filename), ".pdf") {
		return "", "", fmt.Errorf("unsupported file type %q: image uploads must arrive as extractedText after OCR", ext(header.Filename))
	}
	pages, err := h.extractPDF(file)
	if err != nil {
		return "", "", err
	}
	return extractor.Combined(pages), header.Filename, nil
}

// handleGSTImport ingests a JSON payload of GST invoices. There is no
// preview step; GST entries are hand-made records and commit directly.
func (h *Handler) handleGSTImport(w http.ResponseWriter, r *http.Request, b store.Business, userID string) {
	var req struct {
		Invoices []ingest.GSTInvoice `json:"invoices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := ingest.IngestGST(req.Invoices)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inserted, err := h.Store.InsertTransactions(r.Context(), b.ID, result.Batch)
	if err != nil {
		h.Log.Error().Err(err).Stringer("business", b.ID).Msg("gst insert failed")
		writeError(w, http.StatusInternalServerError, "could not store transactions")
		return
	}
	h.audit(r.Context(), b.ID, userID, "gst.import", fmt.Sprintf("%d invoices", inserted))
	writeJSON(w, http.StatusOK, map[string]any{"inserted": inserted})
}

func (h *Handler) handleGSTSummary(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	summary := metrics.GSTMonthlySummary(txns)
	views := make([]gstMonthlyView, 0, len(summary))
	for _, m := range summary {
		views = append(views, gstMonthlyView{
			Month:     m.Month,
			Sales:     round2(m.Sales),
			Purchases: round2(m.Purchases),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": views})
}

// finishIngest is the shared tail of every batch upload: preview echoes the
// batch, commit persists it and logs the action.
func (h *Handler) finishIngest(w http.ResponseWriter, r *http.Request, b store.Business, userID string, commit bool, batch []canonical.Transaction, action, source string) {
	resp := ingestResponse{
		RowCount:     len(batch),
		Transactions: toTxnViews(batch),
	}
	if commit {
		if _, err := h.Store.InsertTransactions(r.Context(), b.ID, batch); err != nil {
			h.Log.Error().Err(err).Stringer("business", b.ID).Msg("transaction insert failed")
			writeError(w, http.StatusInternalServerError, "could not store transactions")
			return
		}
		h.audit(r.Context(), b.ID, userID, action, fmt.Sprintf("%s: %d rows", source, len(batch)))
		resp.Committed = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		h.Log.Error().Err(err).Stringer("business", b.ID).Msg("list transactions failed")
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(txns),
		"transactions": toTxnViews(txns),
	})
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		h.Log.Error().Err(err).Stringer("business", b.ID).Msg("list transactions failed")
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	k := metrics.ComputeKPIs(txns, expensePolicy(r))
	view := kpiView{
		TotalTransactions: k.TotalTransactions,
		TotalInflow:       round2(k.Inflow),
		TotalOutflow:      round2(k.Outflow),
		Revenue:           round2(k.Revenue),
		Expenses:          round2(k.Expenses),
		NetCashflow:       round2(k.NetCashflow),
		Profit:            round2(k.ProfitSimple),
	}
	if k.ExpenseRatio != nil {
		v := k.ExpenseRatio.InexactFloat64()
		view.ExpenseRatio = &v
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	series := metrics.MonthlySeries(txns, expensePolicy(r))
	views := make([]monthlyView, 0, len(series))
	for _, m := range series {
		views = append(views, monthlyView{
			Month:    m.Month,
			Revenue:  round2(m.Revenue),
			Expenses: round2(m.Expenses),
			Profit:   round2(m.ProfitSimple),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"monthly": views})
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	s := metrics.HealthScore(txns, expensePolicy(r))
	writeJSON(w, http.StatusOK, map[string]any{"score": s.Score, "rating": s.Rating})
}

func (h *Handler) handleRisks(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"risks": metrics.DetectRisks(txns, expensePolicy(r)),
	})
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": metrics.Recommendations(txns, expensePolicy(r)),
	})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	months := metrics.DefaultForecastMonths
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 24 {
			writeError(w, http.StatusBadRequest, "months must be an integer between 1 and 24")
			return
		}
		months = n
	}
	txns, err := h.Store.ListTransactions(r.Context(), b.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	series := metrics.MonthlySeries(txns, expensePolicy(r))
	points := metrics.Forecast(series, months)
	views := make([]forecastView, 0, len(points))
	for _, p := range points {
		views = append(views, forecastView{
			Month:       p.Month,
			Revenue:     round2(p.Revenue),
			NetCashflow: round2(p.NetCashflow),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"forecast": views})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request, b store.Business, _ string) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}
	entries, err := h.Store.ListAudit(r.Context(), b.ID, limit)
	if err != nil {
		h.Log.Error().Err(err).Stringer("business", b.ID).Msg("list audit failed")
		writeError(w, http.StatusInternalServerError, "could not load audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

// audit records the action; a failed audit write is logged, not surfaced.
func (h *Handler) audit(ctx context.Context, businessID uuid.UUID, userID, action, detail string) {
	if err := h.Store.LogAudit(ctx, businessID, userID, action, detail); err != nil {
		h.Log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
