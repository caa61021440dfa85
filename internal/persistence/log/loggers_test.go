package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chatwars.ai/internal/sim/engine"
)

func TestAuditLogger_HourlyFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	h1 := time.Date(2026, 5, 2, 9, 15, 0, 0, time.UTC)
	h2 := h1.Add(time.Hour)
	entries := []engine.AuditEntry{
		{ID: "a", Time: h1, ChatID: 1, Actor: 10, Action: "activity"},
		{ID: "b", Time: h1.Add(time.Minute), ChatID: 1, Actor: 10, Action: "purchase", Details: map[string]any{"asset": "tank"}},
		{ID: "c", Time: h2, ChatID: 2, Actor: 20, Action: "attack"},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first, err := ReadAudit(filepath.Join(dir, "audit", "audit-2026-05-02-09.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(first) != 2 || first[0].ID != "a" || first[1].Details["asset"] != "tank" {
		t.Fatalf("unexpected first hour: %+v", first)
	}
	second, err := ReadAudit(filepath.Join(dir, "audit", "audit-2026-05-02-10.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(second) != 1 || second[0].Action != "attack" || second[0].ChatID != 2 {
		t.Fatalf("unexpected second hour: %+v", second)
	}
}

func TestAuditLogger_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"x", "y"} {
		l := NewAuditLogger(dir)
		if err := l.WriteAudit(engine.AuditEntry{ID: id, Time: at.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	got, err := ReadAudit(filepath.Join(dir, "audit", "audit-2026-05-02-09.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(got) != 2 || got[0].ID != "x" || got[1].ID != "y" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestAuditLogger_FlushedBeforeClose(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	defer l.Close()

	at := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	if err := l.WriteAudit(engine.AuditEntry{ID: "live", Time: at}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	path := filepath.Join(l.Dir(), "audit-2026-05-02-09.jsonl.zst")
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("audit file not written: %v", err)
	}
}
