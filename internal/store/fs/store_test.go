package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"esign/internal/store"
)

func TestSaveAndGet(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := store.NewDeliveryID()
	if err := s.SaveRaw(context.Background(), id, []byte(`{"event":"envelope-completed"}`)); err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}

	rec, ok, err := s.Get(context.Background(), "raw_"+id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Kind != store.KindRaw {
		t.Fatalf("kind %q", rec.Kind)
	}
	if string(rec.Data) != `{"event":"envelope-completed"}` {
		t.Fatalf("payload mangled: %s", rec.Data)
	}
}

func TestGetWrapsNonJSONPayload(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := store.NewDeliveryID()
	if err := s.SaveRaw(context.Background(), id, []byte("not json")); err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}

	rec, ok, err := s.Get(context.Background(), "raw_"+id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !json.Valid(rec.Data) {
		t.Fatalf("record data must always be valid JSON, got %q", rec.Data)
	}
	var body string
	if err := json.Unmarshal(rec.Data, &body); err != nil || body != "not json" {
		t.Fatalf("original bytes lost: %q err=%v", rec.Data, err)
	}
	// The record must survive embedding in a larger response.
	if _, err := json.Marshal(rec); err != nil {
		t.Fatalf("record not encodable: %v", err)
	}
}

func TestProcessedOverwritesOnRedelivery(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.SaveProcessed(context.Background(), "env-1", "envelope-completed", map[string]string{"message": "first"}); err != nil {
		t.Fatalf("SaveProcessed: %v", err)
	}
	if err := s.SaveProcessed(context.Background(), "env-1", "envelope-completed", map[string]string{"message": "second"}); err != nil {
		t.Fatalf("SaveProcessed redelivery: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("redelivery must overwrite, found %d files", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, "processed_env-1_envelope-completed.json"))
	if err != nil {
		t.Fatalf("read processed: %v", err)
	}
	if got := string(data); !strings.Contains(got, "second") {
		t.Fatalf("latest delivery not kept: %s", got)
	}
}

func TestSaveDocumentNaming(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	pdf := []byte("%PDF-1.4 signed")
	if err := s.SaveDocument(context.Background(), "env-1", "envelope-completed", pdf); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	saved, err := os.ReadFile(filepath.Join(dir, "signed_env-1_envelope-completed.pdf"))
	if err != nil {
		t.Fatalf("document file: %v", err)
	}
	if string(saved) != string(pdf) {
		t.Fatalf("bytes differ")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	s, _ := New(t.TempDir())

	var ids []string
	for i := 0; i < 3; i++ {
		id := store.NewDeliveryID()
		ids = append(ids, id)
		if err := s.SaveRaw(context.Background(), id, []byte(`{}`)); err != nil {
			t.Fatalf("SaveRaw: %v", err)
		}
		// ULIDs share a millisecond otherwise, which breaks the ordering check.
		time.Sleep(2 * time.Millisecond)
	}

	records, err := s.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("limit ignored: %d records", len(records))
	}
	// ULIDs sort by mint time, so the newest delivery leads.
	if records[0].ID != "raw_"+ids[2] {
		t.Fatalf("newest first expected, got %q", records[0].ID)
	}
}

func TestGetRejectsPathTraversal(t *testing.T) {
	s, _ := New(t.TempDir())
	for _, id := range []string{"../etc/passwd", "a/b", `a\b`, "..", ""} {
		if _, ok, err := s.Get(context.Background(), id); ok || err != nil {
			t.Fatalf("id %q: ok=%v err=%v", id, ok, err)
		}
	}
}
