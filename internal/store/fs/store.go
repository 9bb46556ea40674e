// Package fs persists webhook artifacts as flat files in one output
// directory: raw_<delivery>.json, processed_<envelope>_<event>.json and
// signed_<envelope>_<event>.pdf.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"esign/internal/store"
)

type Store struct {
	Dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: create output dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Check reports whether the output directory is still usable, for readyz.
func (s *Store) Check(ctx context.Context) error {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("fs store: %s is not a directory", s.Dir)
	}
	return nil
}

func (s *Store) SaveRaw(ctx context.Context, deliveryID string, payload []byte) error {
	return s.write("raw_"+deliveryID+".json", payload)
}

func (s *Store) SaveProcessed(ctx context.Context, envelopeID, eventType string, result any) error {
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("fs store: encode processed result: %w", err)
	}
	return s.write("processed_"+store.DedupKey(envelopeID, eventType)+".json", b)
}

func (s *Store) SaveDocument(ctx context.Context, envelopeID, eventType string, pdf []byte) error {
	return s.write("signed_"+store.DedupKey(envelopeID, eventType)+".pdf", pdf)
}

// List returns the newest limit JSON records (raw and processed).
func (s *Store) List(ctx context.Context, limit int) ([]store.Record, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("fs store: read output dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	// Delivery ids are ULIDs, so reverse-lexicographic is newest first for
	// raw records; processed records just sort among them.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	records := make([]store.Record, 0, len(names))
	for _, name := range names {
		rec, ok, err := s.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil || !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) Get(ctx context.Context, id string) (store.Record, bool, error) {
	if !validID(id) {
		return store.Record{}, false, nil
	}
	path := filepath.Join(s.Dir, id+".json")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Record{}, false, err
	}

	kind := store.KindRaw
	if strings.HasPrefix(id, "processed_") {
		kind = store.KindProcessed
	}

	// Raw deliveries are whatever the sender posted. A non-JSON body would
	// make every listing response undecodable, so it is re-wrapped as a
	// JSON string for the read path; the file keeps the exact bytes.
	payload := json.RawMessage(data)
	if !json.Valid(data) {
		payload, err = json.Marshal(string(data))
		if err != nil {
			return store.Record{}, false, err
		}
	}

	return store.Record{
		ID:         id,
		Kind:       kind,
		ReceivedAt: info.ModTime().UTC(),
		Data:       payload,
	}, true, nil
}

func (s *Store) write(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return fmt.Errorf("fs store: write %s: %w", name, err)
	}
	return nil
}

// validID refuses anything that could escape the output directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/\\") && !strings.Contains(id, "..")
}
