package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/internal/lookup"
	scansvc "github.com/angelmondragon/cestaprecios/internal/scan"
	"github.com/angelmondragon/cestaprecios/internal/staging"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
	"github.com/angelmondragon/cestaprecios/pkg/kvstore"
)

const lidlReceipt = "LIDL SUPERMERCADOS\nLECHE ENTERA 1L 0,89\nGAZPACHO 1,99\nTOTAL 2,88"

type stubLookup struct {
	name string
}

func (s stubLookup) Lookup(_ context.Context, code string) (*lookup.Product, error) {
	if s.name == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, lookup.ErrNotFound, "product not found")
	}
	name := s.name
	return &lookup.Product{Code: code, Name: &name}, nil
}

type stubRecognizer struct {
	text  string
	image []byte
}

func (s *stubRecognizer) Recognize(_ context.Context, image []byte, _ string) (string, error) {
	s.image = image
	return s.text, nil
}

type fixture struct {
	router  http.Handler
	catalog *catalog.Catalog
	ocr     *stubRecognizer
}

func newFixture(t *testing.T, maxBytes int64) fixture {
	t.Helper()
	cat, err := catalog.New(catalog.Options{Store: kvstore.NewMemory()})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	recognizer := &stubRecognizer{text: lidlReceipt}
	svc, err := scansvc.NewService(scansvc.ServiceParams{
		Catalog:  cat,
		Lookup:   stubLookup{name: "Gazpacho Original"},
		OCR:      recognizer,
		Sessions: staging.NewRegistry(time.Hour),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/receipts", StageReceipt(svc, nil))
	r.Post("/receipts/image", StageReceiptImage(svc, maxBytes, nil))
	r.Post("/barcodes/{code}", StageBarcode(svc, nil))
	r.Post("/staging/manual", StageManual(svc, nil))
	r.Get("/staging/{sessionId}", GetSession(svc, nil))
	r.Patch("/staging/{sessionId}/candidates/{index}", EditCandidate(svc, nil))
	r.Delete("/staging/{sessionId}/candidates/{index}", RemoveCandidate(svc, nil))
	r.Post("/staging/{sessionId}/confirm", ConfirmSession(svc, nil))
	r.Post("/staging/{sessionId}/cancel", CancelSession(svc, nil))
	return fixture{router: r, catalog: cat, ocr: recognizer}
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func decodeSnapshot(t *testing.T, resp *httptest.ResponseRecorder) staging.Snapshot {
	t.Helper()
	var envelope struct {
		Data staging.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode snapshot: %v (%s)", err, resp.Body.String())
	}
	return envelope.Data
}

func TestReceiptToConfirmFlow(t *testing.T) {
	f := newFixture(t, 1<<20)

	resp := f.do(http.MethodPost, "/receipts", `{"text":"`+strings.ReplaceAll(lidlReceipt, "\n", `\n`)+`"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	snap := decodeSnapshot(t, resp)
	if len(snap.Candidates) != 2 {
		t.Fatalf("expected 2 candidates got %d", len(snap.Candidates))
	}

	resp = f.do(http.MethodPatch, "/staging/"+snap.ID+"/candidates/1", `{"price":2.15}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	snap = decodeSnapshot(t, resp)
	if !snap.Candidates[1].Price.Equal(decimal.RequireFromString("2.15")) {
		t.Fatalf("numeric price edit not applied: %s", snap.Candidates[1].Price)
	}

	resp = f.do(http.MethodPatch, "/staging/"+snap.ID+"/candidates/1", `{"name":"Gazpacho","price":"2,05"}`)
	snap = decodeSnapshot(t, resp)
	if snap.Candidates[1].Name != "Gazpacho" || !snap.Candidates[1].Price.Equal(decimal.RequireFromString("2.05")) {
		t.Fatalf("text edit not applied: %+v", snap.Candidates[1])
	}

	resp = f.do(http.MethodPost, "/staging/"+snap.ID+"/confirm", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var result struct {
		Data scansvc.ConfirmResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if result.Data.Updated != 1 || result.Data.Added != 1 {
		t.Fatalf("unexpected result %+v", result.Data)
	}

	if resp := f.do(http.MethodGet, "/staging/"+snap.ID, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected confirmed session gone, got %d", resp.Code)
	}
}

func TestReceiptRejections(t *testing.T) {
	f := newFixture(t, 1<<20)
	cases := []struct {
		body string
		want int
	}{
		{`{"text":""}`, http.StatusBadRequest},
		{`{"text":"TIENDA\n1 PAN 1,00"}`, http.StatusBadRequest},
		{`{"text":"LIDL","unknown":1}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if resp := f.do(http.MethodPost, "/receipts", tc.body); resp.Code != tc.want {
			t.Fatalf("body %s: expected %d got %d", tc.body, tc.want, resp.Code)
		}
	}
}

func TestReceiptImageRawAndMultipart(t *testing.T) {
	f := newFixture(t, 512)

	req := httptest.NewRequest(http.MethodPost, "/receipts/image", bytes.NewReader([]byte("jpeg-bytes")))
	req.Header.Set("Content-Type", "image/jpeg")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if string(f.ocr.image) != "jpeg-bytes" {
		t.Fatalf("recognizer got %q", f.ocr.image)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "ticket.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("png"))
	_ = mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/receipts/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for multipart got %d: %s", resp.Code, resp.Body.String())
	}
	if string(f.ocr.image) != "png" {
		t.Fatalf("recognizer got %q", f.ocr.image)
	}

	req = httptest.NewRequest(http.MethodPost, "/receipts/image", bytes.NewReader(bytes.Repeat([]byte("x"), 1024)))
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/receipts/image", nil)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty upload got %d", resp.Code)
	}
}

func TestBarcodeStagesAndRequiresPrice(t *testing.T) {
	f := newFixture(t, 1<<20)

	resp := f.do(http.MethodPost, "/barcodes/8410000000000", `{"supermarket":"Mercadona"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	snap := decodeSnapshot(t, resp)
	if snap.Candidates[0].Name != "Gazpacho Original" || !snap.Candidates[0].IsNew {
		t.Fatalf("unexpected candidate %+v", snap.Candidates[0])
	}

	if resp := f.do(http.MethodPost, "/staging/"+snap.ID+"/confirm", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero price got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/staging/"+snap.ID, ""); resp.Code != http.StatusOK {
		t.Fatalf("session should stay open, got %d", resp.Code)
	}

	if resp := f.do(http.MethodPost, "/barcodes/8410000000000", `{"supermarket":"Aldi","price":1}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown supermarket got %d", resp.Code)
	}
	if resp := f.do(http.MethodPost, "/barcodes/8410000000000", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing body got %d", resp.Code)
	}
}

func TestManualEntryRemoveAndCancel(t *testing.T) {
	f := newFixture(t, 1<<20)
	before := len(f.catalog.Products())

	if resp := f.do(http.MethodPost, "/staging/manual", `{"name":"Atún","price":3.2,"supermarket":"Lidl","image":"not a url"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad image url got %d", resp.Code)
	}

	resp := f.do(http.MethodPost, "/staging/manual", `{"name":"Atún","price":3.2,"supermarket":"lidl","category":"Conservas"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	snap := decodeSnapshot(t, resp)
	if snap.Candidates[0].Category != "Conservas" {
		t.Fatalf("unexpected candidate %+v", snap.Candidates[0])
	}

	if resp := f.do(http.MethodDelete, "/staging/"+snap.ID+"/candidates/x", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non numeric index got %d", resp.Code)
	}
	if resp := f.do(http.MethodDelete, "/staging/"+snap.ID+"/candidates/3", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range index got %d", resp.Code)
	}
	resp = f.do(http.MethodDelete, "/staging/"+snap.ID+"/candidates/0", "")
	if snap := decodeSnapshot(t, resp); len(snap.Candidates) != 0 {
		t.Fatalf("expected empty session got %d", len(snap.Candidates))
	}

	if resp := f.do(http.MethodPost, "/staging/"+snap.ID+"/cancel", ""); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if resp := f.do(http.MethodPost, "/staging/"+snap.ID+"/cancel", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after cancel got %d", resp.Code)
	}
	if got := len(f.catalog.Products()); got != before {
		t.Fatalf("cancel must not touch the catalog: %d != %d", got, before)
	}
}

func TestRawNumberAcceptsStringsAndNumbers(t *testing.T) {
	var req editCandidateRequest
	if err := json.Unmarshal([]byte(`{"price":1.5}`), &req); err != nil || req.Price == nil || *req.Price != "1.5" {
		t.Fatalf("number: %v %v", err, req.Price)
	}
	req = editCandidateRequest{}
	if err := json.Unmarshal([]byte(`{"price":"1,5"}`), &req); err != nil || *req.Price != "1,5" {
		t.Fatalf("string: %v %v", err, req.Price)
	}
	req = editCandidateRequest{}
	if err := json.Unmarshal([]byte(`{"price":true}`), &req); err == nil {
		t.Fatalf("expected error for bool price")
	}
}
