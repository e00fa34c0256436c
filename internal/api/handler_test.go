package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
	"github.com/smefin/finhealth/internal/store"
	"github.com/smefin/finhealth/internal/textparse"
)

type fakeStore struct {
	business store.Business
	txns     []canonical.Transaction
	invoices []textparse.Invoice
	audits   []store.AuditEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		business: store.Business{
			ID:          uuid.New(),
			Name:        "Test Traders",
			OwnerUserID: "user-1",
			CreatedAt:   time.Now(),
		},
	}
}

func (f *fakeStore) CreateBusiness(_ context.Context, name, userID string) (store.Business, error) {
	f.business = store.Business{ID: uuid.New(), Name: name, OwnerUserID: userID, CreatedAt: time.Now()}
	return f.business, nil
}

func (f *fakeStore) RequireBusinessOwner(_ context.Context, id uuid.UUID, userID string) (store.Business, error) {
	if id != f.business.ID {
		return store.Business{}, store.ErrBusinessNotFound
	}
	if userID != f.business.OwnerUserID {
		return store.Business{}, store.ErrNotOwner
	}
	return f.business, nil
}

func (f *fakeStore) DeleteBusiness(_ context.Context, id uuid.UUID) error {
	if id != f.business.ID {
		return store.ErrBusinessNotFound
	}
	f.txns = nil
	return nil
}

func (f *fakeStore) InsertTransactions(_ context.Context, _ uuid.UUID, txns []canonical.Transaction) (int, error) {
	f.txns = append(f.txns, txns...)
	return len(txns), nil
}

func (f *fakeStore) ListTransactions(_ context.Context, _ uuid.UUID) ([]canonical.Transaction, error) {
	return f.txns, nil
}

func (f *fakeStore) InsertInvoice(_ context.Context, _ uuid.UUID, inv textparse.Invoice) (int64, error) {
	f.invoices = append(f.invoices, inv)
	return int64(len(f.invoices)), nil
}

func (f *fakeStore) LogAudit(_ context.Context, businessID uuid.UUID, userID, action, detail string) error {
	f.audits = append(f.audits, store.AuditEntry{
		ID: int64(len(f.audits) + 1), BusinessID: businessID,
		UserID: userID, Action: action, Detail: detail, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) ListAudit(_ context.Context, _ uuid.UUID, limit int) ([]store.AuditEntry, error) {
	if len(f.audits) > limit {
		return f.audits[:limit], nil
	}
	return f.audits, nil
}

func setup() (*fakeStore, http.Handler) {
	fs := newFakeStore()
	h := &Handler{Store: fs, Log: zerolog.Nop(), Version: "test"}
	return fs, h.Routes()
}

func doRequest(t *testing.T, router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := setup()
	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("got body %v", body)
	}
}

func TestCreateBusinessRequiresUser(t *testing.T) {
	_, router := setup()
	req := httptest.NewRequest(http.MethodPost, "/api/business", strings.NewReader(`{"name":"Shop"}`))
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}

func TestCreateBusiness(t *testing.T) {
	fs, router := setup()
	req := httptest.NewRequest(http.MethodPost, "/api/business", strings.NewReader(`{"name":"  Corner Shop  "}`))
	req.Header.Set("X-User-ID", "user-9")
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if fs.business.Name != "Corner Shop" || fs.business.OwnerUserID != "user-9" {
		t.Errorf("got business %+v", fs.business)
	}
	if len(fs.audits) != 1 || fs.audits[0].Action != "business.create" {
		t.Errorf("expected a business.create audit entry, got %+v", fs.audits)
	}
}

func TestCreateBusinessEmptyName(t *testing.T) {
	_, router := setup()
	req := httptest.NewRequest(http.MethodPost, "/api/business", strings.NewReader(`{"name":"  "}`))
	req.Header.Set("X-User-ID", "user-9")
	if rec := doRequest(t, router, req); rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rec.Code)
	}
}

func TestOwnershipGate(t *testing.T) {
	fs, router := setup()

	req := httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/metrics/kpis", nil)
	req.Header.Set("X-User-ID", "someone-else")
	if rec := doRequest(t, router, req); rec.Code != http.StatusForbidden {
		t.Errorf("wrong owner: got status %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/business/"+uuid.NewString()+"/metrics/kpis", nil)
	req.Header.Set("X-User-ID", "user-1")
	if rec := doRequest(t, router, req); rec.Code != http.StatusNotFound {
		t.Errorf("unknown business: got status %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/business/not-a-uuid/metrics/kpis", nil)
	req.Header.Set("X-User-ID", "user-1")
	if rec := doRequest(t, router, req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: got status %d, want 400", rec.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(fileContent)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadTablePreviewAndCommit(t *testing.T) {
	fs, router := setup()
	csvData := "date,description,amount\n2024-01-10,Sale,100.00\n2024-01-12,Rent,-40.00\n"

	body, contentType := multipartBody(t, nil, "upload.csv", csvData)
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/upload/preview", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: got status %d: %s", rec.Code, rec.Body.String())
	}
	var preview ingestResponse
	decodeBody(t, rec, &preview)
	if preview.RowCount != 2 || preview.Committed {
		t.Errorf("preview: got %+v", preview)
	}
	if len(fs.txns) != 0 {
		t.Fatal("preview must not persist transactions")
	}

	body, contentType = multipartBody(t, nil, "upload.csv", csvData)
	req = httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/upload/commit", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	rec = doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: got status %d: %s", rec.Code, rec.Body.String())
	}
	var commit ingestResponse
	decodeBody(t, rec, &commit)
	if !commit.Committed || commit.RowCount != 2 {
		t.Errorf("commit: got %+v", commit)
	}
	if len(fs.txns) != 2 {
		t.Fatalf("got %d persisted transactions, want 2", len(fs.txns))
	}
	if fs.txns[1].Direction != canonical.Debit {
		t.Errorf("negative amount must commit as debit, got %s", fs.txns[1].Direction)
	}
}

func TestUploadTableBadDataset(t *testing.T) {
	fs, router := setup()
	body, contentType := multipartBody(t, nil, "upload.csv", "foo,bar\n1,2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/upload/preview", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	if rec := doRequest(t, router, req); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("got status %d, want 422", rec.Code)
	}
}

func TestUploadStatementExtractedText(t *testing.T) {
	fs, router := setup()
	text := "2024-01-05 POS PURCHASE DR 845.20\n06/01/2024 NEFT CREDIT 12,000.00"

	body, contentType := multipartBody(t, map[string]string{"extractedText": text}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/upload/pdf/commit", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if len(fs.txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(fs.txns))
	}
}

func TestUploadStatementRejectsImages(t *testing.T) {
	fs, router := setup()
	body, contentType := multipartBody(t, nil, "scan.png", "not really a png")
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/upload/pdf/preview", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "extractedText") {
		t.Errorf("error should point at the extractedText field: %s", rec.Body.String())
	}
}

func TestInvoiceCommit(t *testing.T) {
	fs, router := setup()
	doc := "Acme Traders\nGSTIN: 27AAPFU0939F1ZV\nInvoice No: INV-7\nDate: 15/03/2024\nGrand Total: 1,950.00"

	body, contentType := multipartBody(t, map[string]string{"extractedText": doc}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/invoice/ocr/commit", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var resp invoiceResponse
	decodeBody(t, rec, &resp)
	if resp.VendorName != "Acme Traders" || resp.InvoiceNumber != "INV-7" || !resp.Committed {
		t.Errorf("got %+v", resp)
	}
	if resp.Total == nil || *resp.Total != 1950 {
		t.Errorf("got total %v, want 1950", resp.Total)
	}
	if len(fs.invoices) != 1 || len(fs.txns) != 1 {
		t.Fatalf("got %d invoices and %d transactions, want 1 and 1", len(fs.invoices), len(fs.txns))
	}
	if fs.txns[0].Direction != canonical.Debit || fs.txns[0].Category != canonical.CategoryExpense {
		t.Errorf("invoice transaction must be a debit expense, got %+v", fs.txns[0])
	}
}

func TestInvoiceNoData(t *testing.T) {
	fs, router := setup()
	body, contentType := multipartBody(t, map[string]string{"extractedText": "illegible scan"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/invoice/ocr/commit", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "user-1")

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var resp invoiceResponse
	decodeBody(t, rec, &resp)
	if !resp.NoData || resp.Committed {
		t.Errorf("got %+v, want no_data and not committed", resp)
	}
	if len(fs.invoices) != 0 || len(fs.txns) != 0 {
		t.Error("an invoice without a total must not be persisted")
	}
}

func seedTransactions(fs *fakeStore) {
	mk := func(date string, dir canonical.Direction, category, amount string) canonical.Transaction {
		d, _ := time.Parse("2006-01-02", date)
		return canonical.Transaction{
			Date: d, Description: "seed", Category: category,
			Direction: dir, Amount: decimal.RequireFromString(amount),
		}
	}
	fs.txns = []canonical.Transaction{
		mk("2024-01-05", canonical.Credit, "revenue", "1000"),
		mk("2024-01-15", canonical.Debit, "rent", "400"),
		mk("2024-02-10", canonical.Credit, "revenue", "1200"),
		mk("2024-02-12", canonical.Debit, "salary", "900"),
	}
}

func TestKPIsEndpoint(t *testing.T) {
	fs, router := setup()
	seedTransactions(fs)

	req := httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/metrics/kpis", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var view kpiView
	decodeBody(t, rec, &view)
	if view.TotalTransactions != 4 {
		t.Errorf("got %d transactions, want 4", view.TotalTransactions)
	}
	if view.TotalInflow != 2200 || view.TotalOutflow != 1300 {
		t.Errorf("got inflow %v outflow %v", view.TotalInflow, view.TotalOutflow)
	}
	if view.NetCashflow != 900 {
		t.Errorf("got net cashflow %v, want 900", view.NetCashflow)
	}
	if view.ExpenseRatio == nil {
		t.Error("expected an expense ratio")
	}
}

func TestMonthlyAndForecastEndpoints(t *testing.T) {
	fs, router := setup()
	seedTransactions(fs)

	req := httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/metrics/monthly", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	var monthly struct {
		Monthly []monthlyView `json:"monthly"`
	}
	decodeBody(t, rec, &monthly)
	if len(monthly.Monthly) != 2 || monthly.Monthly[0].Month != "2024-01" {
		t.Errorf("got %+v", monthly.Monthly)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/metrics/forecast?months=2", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec = doRequest(t, router, req)
	var forecast struct {
		Forecast []forecastView `json:"forecast"`
	}
	decodeBody(t, rec, &forecast)
	if len(forecast.Forecast) != 2 {
		t.Fatalf("got %d forecast points, want 2", len(forecast.Forecast))
	}
	if forecast.Forecast[0].Month != "2024-03" || forecast.Forecast[1].Month != "2024-04" {
		t.Errorf("got months %s, %s", forecast.Forecast[0].Month, forecast.Forecast[1].Month)
	}
}

func TestForecastMonthsValidation(t *testing.T) {
	fs, router := setup()
	for _, months := range []string{"0", "-1", "25", "abc"} {
		req := httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/api/business/%s/metrics/forecast?months=%s", fs.business.ID, months), nil)
		req.Header.Set("X-User-ID", "user-1")
		if rec := doRequest(t, router, req); rec.Code != http.StatusBadRequest {
			t.Errorf("months=%s: got status %d, want 400", months, rec.Code)
		}
	}
}

func TestScoreAndRisksEndpoints(t *testing.T) {
	fs, router := setup()

	// No data yet.
	req := httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/metrics/score", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	var score struct {
		Score  int    `json:"score"`
		Rating string `json:"rating"`
	}
	decodeBody(t, rec, &score)
	if score.Score != 0 || score.Rating != "No Data" {
		t.Errorf("got %+v", score)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/metrics/risks", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec = doRequest(t, router, req)
	var risks struct {
		Risks []struct {
			Type     string `json:"type"`
			Severity string `json:"severity"`
		} `json:"risks"`
	}
	decodeBody(t, rec, &risks)
	if len(risks.Risks) != 1 || risks.Risks[0].Type != "no_data" {
		t.Errorf("got %+v", risks.Risks)
	}
}

func TestAuditEndpoint(t *testing.T) {
	fs, router := setup()
	fs.LogAudit(context.Background(), fs.business.ID, "user-1", "upload.table", "seed")

	req := httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/audit", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var body struct {
		Audit []store.AuditEntry `json:"audit"`
	}
	decodeBody(t, rec, &body)
	if len(body.Audit) != 1 || body.Audit[0].Action != "upload.table" {
		t.Errorf("got %+v", body.Audit)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/audit?limit=0", nil)
	req.Header.Set("X-User-ID", "user-1")
	if rec := doRequest(t, router, req); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0: got status %d, want 400", rec.Code)
	}
}

func TestDeleteBusiness(t *testing.T) {
	fs, router := setup()
	seedTransactions(fs)

	req := httptest.NewRequest(http.MethodDelete, "/api/business/"+fs.business.ID.String(), nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if len(fs.txns) != 0 {
		t.Error("delete must cascade to transactions")
	}
}

func TestGSTImportEndpoint(t *testing.T) {
	fs, router := setup()

	payload := `{"invoices":[
		{"date":"2026-01-10","description":"GST Sale - Invoice 1","amount":25000,"type":"sale"},
		{"date":"2026-01-12","amount":8000,"type":"purchase"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/gst/import", strings.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Inserted int `json:"inserted"`
	}
	decodeBody(t, rec, &body)
	if body.Inserted != 2 {
		t.Errorf("got inserted %d, want 2", body.Inserted)
	}
	if len(fs.txns) != 2 {
		t.Fatalf("got %d stored transactions, want 2", len(fs.txns))
	}
	sale := fs.txns[0]
	if sale.Direction != canonical.Credit || sale.Category != "revenue" {
		t.Errorf("sale stored as %s/%s", sale.Direction, sale.Category)
	}
	purchase := fs.txns[1]
	if purchase.Direction != canonical.Debit || purchase.Category != "expense" {
		t.Errorf("purchase stored as %s/%s", purchase.Direction, purchase.Category)
	}
	if purchase.Description != "GST Entry" {
		t.Errorf("got description %q, want the GST Entry default", purchase.Description)
	}
	if len(fs.audits) != 1 || fs.audits[0].Action != "gst.import" {
		t.Errorf("expected a gst.import audit entry, got %+v", fs.audits)
	}
}

func TestGSTImportEmptyPayload(t *testing.T) {
	fs, router := setup()
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/gst/import", strings.NewReader(`{"invoices":[]}`))
	req.Header.Set("X-User-ID", "user-1")
	if rec := doRequest(t, router, req); rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rec.Code)
	}
}

func TestGSTImportBadDate(t *testing.T) {
	fs, router := setup()
	payload := `{"invoices":[{"date":"10/01/2026","amount":100,"type":"sale"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/business/"+fs.business.ID.String()+"/gst/import", strings.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	if rec := doRequest(t, router, req); rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rec.Code)
	}
	if len(fs.txns) != 0 {
		t.Error("a rejected payload must store nothing")
	}
}

func TestGSTSummaryEndpoint(t *testing.T) {
	fs, router := setup()
	mk := func(date, desc string, dir canonical.Direction, category, amount string) canonical.Transaction {
		d, _ := time.Parse("2006-01-02", date)
		return canonical.Transaction{
			Date: d, Description: desc, Category: category,
			Direction: dir, Amount: decimal.RequireFromString(amount),
		}
	}
	fs.txns = []canonical.Transaction{
		mk("2026-01-10", "GST Sale - Invoice 1", canonical.Credit, "revenue", "25000"),
		mk("2026-01-12", "GST Entry", canonical.Debit, "expense", "8000"),
		mk("2026-02-01", "rent payment", canonical.Debit, "rent", "4000"), // not GST-relevant
	}

	req := httptest.NewRequest(http.MethodGet, "/api/business/"+fs.business.ID.String()+"/gst/summary", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Summary []gstMonthlyView `json:"summary"`
	}
	decodeBody(t, rec, &body)
	if len(body.Summary) != 2 {
		t.Fatalf("got %d months, want 2", len(body.Summary))
	}
	jan := body.Summary[0]
	if jan.Month != "2026-01" || jan.Sales != 25000 || jan.Purchases != 8000 {
		t.Errorf("january summary wrong: %+v", jan)
	}
	feb := body.Summary[1]
	if feb.Month != "2026-02" || feb.Sales != 0 || feb.Purchases != 0 {
		t.Errorf("february summary wrong: %+v", feb)
	}
}
