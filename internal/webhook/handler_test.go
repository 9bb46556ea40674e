package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	fsstore "esign/internal/store/fs"
)

type fakeFetcher struct {
	pdf   []byte
	err   error
	calls int
}

func (f *fakeFetcher) DownloadSignedDocument(ctx context.Context, envelopeID string) ([]byte, error) {
	f.calls++
	return f.pdf, f.err
}

func newTestReceiver(t *testing.T, key []byte, fetcher DocumentFetcher) (*Receiver, *mux.Router, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := fsstore.New(dir)
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	rc := &Receiver{Store: st, HMACKey: key, Documents: fetcher}
	r := mux.NewRouter()
	rc.Register(r)
	return rc, r, dir
}

func deliver(t *testing.T, r *mux.Router, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/docusign", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func filesMatching(t *testing.T, dir, prefix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func completedBody(envelopeID string, embedPDF []byte) []byte {
	summary := map[string]any{
		"envelopeId": envelopeID,
		"status":     "completed",
		"recipients": map[string]any{"signers": []map[string]any{
			{"recipientId": "1", "name": "Alice", "email": "a@x.com", "status": "completed", "signedDateTime": "2026-08-30T11:59:00Z"},
		}},
	}
	if embedPDF != nil {
		summary["envelopeDocuments"] = []map[string]any{
			{"documentId": "combined", "name": "nda.pdf", "PDFBytes": base64.StdEncoding.EncodeToString(embedPDF)},
		}
	}
	body, _ := json.Marshal(map[string]any{
		"event": "envelope-completed",
		"data":  map[string]any{"envelopeId": envelopeID, "envelopeSummary": summary},
	})
	return body
}

func TestRejectsTamperedSignature(t *testing.T) {
	key := []byte("connect-key")
	_, r, dir := newTestReceiver(t, key, nil)

	body := completedBody("env-1", []byte("%PDF-1.4"))
	sig := Sign(key, body)
	tampered := bytes.Replace(body, []byte("env-1"), []byte("env-9"), 1)

	w := deliver(t, r, tampered, sig)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("tampered delivery got %d, want 401", w.Code)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("rejected delivery must persist nothing, found %d files", len(entries))
	}

	// The identical payload with its correct signature goes through.
	w = deliver(t, r, body, sig)
	if w.Code != http.StatusOK {
		t.Fatalf("valid delivery got %d: %s", w.Code, w.Body.String())
	}
}

func TestCompletedPersistsRawProcessedAndDocument(t *testing.T) {
	_, r, dir := newTestReceiver(t, nil, nil)

	pdf := []byte("%PDF-1.4 signed")
	w := deliver(t, r, completedBody("env-1", pdf), "")
	if w.Code != http.StatusOK {
		t.Fatalf("delivery got %d: %s", w.Code, w.Body.String())
	}

	var result Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || !result.DocumentSaved || result.SignerEmail != "a@x.com" {
		t.Fatalf("result %+v", result)
	}

	if got := filesMatching(t, dir, "raw_"); len(got) != 1 {
		t.Fatalf("raw files: %v", got)
	}
	if got := filesMatching(t, dir, "processed_env-1_envelope-completed"); len(got) != 1 {
		t.Fatalf("processed files: %v", got)
	}
	saved, err := os.ReadFile(filepath.Join(dir, "signed_env-1_envelope-completed.pdf"))
	if err != nil {
		t.Fatalf("signed document missing: %v", err)
	}
	if !bytes.Equal(saved, pdf) {
		t.Fatalf("document bytes differ")
	}
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	_, r, dir := newTestReceiver(t, nil, nil)

	body := completedBody("env-1", []byte("%PDF-1.4 signed"))
	for i := 0; i < 2; i++ {
		if w := deliver(t, r, body, ""); w.Code != http.StatusOK {
			t.Fatalf("delivery %d got %d", i, w.Code)
		}
	}

	if got := filesMatching(t, dir, "processed_"); len(got) != 1 {
		t.Fatalf("redelivery duplicated processed records: %v", got)
	}
	if got := filesMatching(t, dir, "signed_"); len(got) != 1 {
		t.Fatalf("redelivery duplicated documents: %v", got)
	}
	// Raw payloads are the audit trail: one per delivery.
	if got := filesMatching(t, dir, "raw_"); len(got) != 2 {
		t.Fatalf("expected 2 raw records, got %v", got)
	}
}

func TestCompletedFetchesDocumentWhenNotEmbedded(t *testing.T) {
	fetcher := &fakeFetcher{pdf: []byte("%PDF-1.4 fetched")}
	_, r, dir := newTestReceiver(t, nil, fetcher)

	w := deliver(t, r, completedBody("env-2", nil), "")
	if w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one follow-up download, got %d", fetcher.calls)
	}
	saved, err := os.ReadFile(filepath.Join(dir, "signed_env-2_envelope-completed.pdf"))
	if err != nil {
		t.Fatalf("fetched document not persisted: %v", err)
	}
	if string(saved) != "%PDF-1.4 fetched" {
		t.Fatalf("wrong bytes persisted: %q", saved)
	}
}

func TestDownloadFailureStillRecordsEvent(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("vendor 503")}
	_, r, dir := newTestReceiver(t, nil, fetcher)

	w := deliver(t, r, completedBody("env-3", nil), "")
	if w.Code != http.StatusOK {
		t.Fatalf("enrichment failure must not fail the delivery, got %d", w.Code)
	}
	if got := filesMatching(t, dir, "raw_"); len(got) != 1 {
		t.Fatalf("raw record lost: %v", got)
	}
	if got := filesMatching(t, dir, "signed_"); len(got) != 0 {
		t.Fatalf("no document should exist: %v", got)
	}
	var result Result
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.DocumentSaved {
		t.Fatalf("result claims a document was saved: %+v", result)
	}
}

func TestDeclinedRecordsDecliner(t *testing.T) {
	_, r, dir := newTestReceiver(t, nil, nil)

	body := []byte(`{
		"event": "envelope-declined",
		"data": {"envelopeSummary": {"envelopeId": "env-4", "status": "declined",
			"recipients": {"signers": [
				{"recipientId": "1", "name": "Bob", "email": "b@x.com", "status": "declined", "declinedReason": "terms unacceptable"}
			]}}}
	}`)
	if w := deliver(t, r, body, ""); w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}

	processed, err := os.ReadFile(filepath.Join(dir, "processed_env-4_envelope-declined.json"))
	if err != nil {
		t.Fatalf("processed record missing: %v", err)
	}
	var result Result
	if err := json.Unmarshal(processed, &result); err != nil {
		t.Fatalf("decode processed record: %v", err)
	}
	if result.SignerEmail != "b@x.com" || result.DeclineReason != "terms unacceptable" {
		t.Fatalf("decliner not recorded: %+v", result)
	}
}

func TestVoidedRecordsReason(t *testing.T) {
	_, r, dir := newTestReceiver(t, nil, nil)

	body := []byte(`{
		"event": "envelope-voided",
		"data": {"envelopeSummary": {"envelopeId": "env-5", "status": "voided", "voidedReason": "sent in error"}}
	}`)
	if w := deliver(t, r, body, ""); w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}

	processed, err := os.ReadFile(filepath.Join(dir, "processed_env-5_envelope-voided.json"))
	if err != nil {
		t.Fatalf("processed record missing: %v", err)
	}
	var result Result
	_ = json.Unmarshal(processed, &result)
	if result.VoidedReason != "sent in error" {
		t.Fatalf("void reason not recorded: %+v", result)
	}
}

func TestUnrecognizedEventRawOnly(t *testing.T) {
	_, r, dir := newTestReceiver(t, nil, nil)

	body := []byte(`{"event":"recipient-sent","data":{"envelopeId":"env-6"}}`)
	if w := deliver(t, r, body, ""); w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}
	if got := filesMatching(t, dir, "raw_"); len(got) != 1 {
		t.Fatalf("raw record missing: %v", got)
	}
	if got := filesMatching(t, dir, "processed_"); len(got) != 0 {
		t.Fatalf("unrecognized event produced processed records: %v", got)
	}
}

func TestMalformedBodyStillRecorded(t *testing.T) {
	_, r, dir := newTestReceiver(t, nil, nil)

	w := deliver(t, r, []byte("not json"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("recorded delivery should answer 200, got %d", w.Code)
	}
	if got := filesMatching(t, dir, "raw_"); len(got) != 1 {
		t.Fatalf("raw record missing for unparseable body: %v", got)
	}
}

func TestAuditEndpointsSurviveNonJSONDelivery(t *testing.T) {
	_, r, _ := newTestReceiver(t, nil, nil)

	if w := deliver(t, r, []byte("not json"), ""); w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}
	if w := deliver(t, r, completedBody("env-8", []byte("%PDF-1.4")), ""); w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list got %d", w.Code)
	}
	var list struct {
		Count  int `json:"count"`
		Events []struct {
			ID string `json:"id"`
		} `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("one bad delivery poisoned the listing: %v (body %q)", err, w.Body.String())
	}
	if list.Count < 3 {
		t.Fatalf("expected both deliveries listed, count=%d", list.Count)
	}

	for _, e := range list.Events {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/"+e.ID, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("get %q got %d", e.ID, w.Code)
		}
		if !json.Valid(w.Body.Bytes()) {
			t.Fatalf("get %q returned invalid JSON: %q", e.ID, w.Body.String())
		}
	}
}

func TestListAndGet(t *testing.T) {
	_, r, _ := newTestReceiver(t, nil, nil)

	if w := deliver(t, r, completedBody("env-7", []byte("%PDF-1.4")), ""); w.Code != http.StatusOK {
		t.Fatalf("delivery got %d", w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list got %d", w.Code)
	}
	var list struct {
		Count  int `json:"count"`
		Events []struct {
			ID string `json:"id"`
		} `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count < 2 {
		t.Fatalf("expected raw and processed records, got %d", list.Count)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/"+list.Events[0].ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get %q got %d", list.Events[0].ID, w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown id got %d, want 404", w.Code)
	}
}

func TestLiveness(t *testing.T) {
	_, r, _ := newTestReceiver(t, nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("liveness got %d", w.Code)
	}
}
