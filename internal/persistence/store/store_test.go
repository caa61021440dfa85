package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, found, err := m.Get(ctx, "chat:1"); err != nil || found {
		t.Fatalf("missing key should be not-found without error, found=%v err=%v", found, err)
	}
	buf := []byte(`{"id":1}`)
	if err := m.Put(ctx, "chat:1", buf); err != nil {
		t.Fatalf("Put: %v", err)
	}
	buf[0] = 'x'
	got, found, err := m.Get(ctx, "chat:1")
	if err != nil || !found || string(got) != `{"id":1}` {
		t.Fatalf("Get returned %q found=%v err=%v", got, found, err)
	}
	if err := m.Delete(ctx, "chat:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := m.Get(ctx, "chat:1"); found {
		t.Fatalf("expected deleted")
	}
}

func TestMemory_ListKeysAndApply(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	err := m.Apply(ctx, []Op{
		{Key: "player:1:2", Value: []byte("a")},
		{Key: "player:1:1", Value: []byte("b")},
		{Key: "player:10:1", Value: []byte("c")},
		{Key: "chat:1", Value: []byte("d")},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	keys, err := m.ListKeys(ctx, "player:1:")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "player:1:1" || keys[1] != "player:1:2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if err := m.Apply(ctx, []Op{{Key: "chat:1"}}); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", m.Len())
	}
}

func TestMemory_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Close()
	if err := m.Put(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestMemory_PutNilRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Put(ctx, "chat:1", []byte(`{}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, "chat:1", nil); !errors.Is(err, ErrNilValue) {
		t.Fatalf("Put(nil) err=%v", err)
	}
	if v, found, _ := m.Get(ctx, "chat:1"); !found || string(v) != `{}` {
		t.Fatalf("Put(nil) changed the record: %q found=%v", v, found)
	}
	if err := m.Put(ctx, "chat:2", []byte{}); err != nil {
		t.Fatalf("Put(empty): %v", err)
	}
	if v, found, _ := m.Get(ctx, "chat:2"); !found || len(v) != 0 {
		t.Fatalf("empty value: %q found=%v", v, found)
	}
}
