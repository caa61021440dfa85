package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"chatwars.ai/internal/persistence/store"
)

func seed(t *testing.T, st store.Store, n int) {
	t.Helper()
	ops := make([]store.Op, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, store.Op{
			Key:   fmt.Sprintf("player:1:%d", i),
			Value: []byte(fmt.Sprintf(`{"points":%d}`, i*7)),
		})
	}
	if err := st.Apply(context.Background(), ops); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemory()
	seed(t, src, 1200)
	if err := src.Put(ctx, "chat:1", []byte(`{"id":1,"rules":"be nice"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	path := filepath.Join(t.TempDir(), "snapshots", "snap.jsonl.zst")
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	h, err := Export(ctx, src, path, Header{CreatedAt: at, CatalogDigest: "abc"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if h.Records != src.Len() || h.Version != Version {
		t.Fatalf("unexpected header: %+v (store has %d)", h, src.Len())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	rh, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if rh.CatalogDigest != "abc" || !rh.CreatedAt.Equal(at) || rh.Records != h.Records {
		t.Fatalf("header mismatch: %+v", rh)
	}

	dst := store.NewMemory()
	if err := dst.Put(ctx, "chat:2", []byte(`{"id":2}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := Import(ctx, path, dst); err != nil {
		t.Fatalf("Import: %v", err)
	}
	keys, _ := src.ListKeys(ctx, "")
	for _, k := range keys {
		want, _, _ := src.Get(ctx, k)
		got, ok, _ := dst.Get(ctx, k)
		if !ok || string(got) != string(want) {
			t.Fatalf("key %s: got %q want %q", k, got, want)
		}
	}
	if _, ok, _ := dst.Get(ctx, "chat:2"); !ok {
		t.Fatalf("import removed an unrelated record")
	}
}

func TestImport_RejectsTruncatedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enc, _ := zstd.NewWriter(f)
	enc.Write([]byte(`{"version":1,"records":2}` + "\n" + `{"key":"chat:1","value":{"id":1}}` + "\n"))
	enc.Close()
	f.Close()

	if _, err := Import(context.Background(), path, store.NewMemory()); err == nil {
		t.Fatalf("expected error for record count mismatch")
	}
}

func TestImport_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v9.jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enc, _ := zstd.NewWriter(f)
	enc.Write([]byte(`{"version":9,"records":0}` + "\n"))
	enc.Close()
	f.Close()

	st := store.NewMemory()
	if _, err := Import(context.Background(), path, st); err == nil {
		t.Fatalf("expected version error")
	}
	if st.Len() != 0 {
		t.Fatalf("store modified: %d records", st.Len())
	}
}
