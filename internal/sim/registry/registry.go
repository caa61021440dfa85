// Package registry hands out chat and player records under a per-chat lock
// and persists whatever a mutation changed before the mutation reports
// success.
//
// All records of a chat (the chat itself, its players and their extended
// economy records) share one lock. A combat between two players of the same
// chat is therefore one critical section and never needs lock ordering.
// Chats do not share anything, so operations on different chats run in
// parallel.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"chatwars.ai/internal/persistence/store"
	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
	"chatwars.ai/internal/sim/tuning"
)

type Registry struct {
	store store.Store
	cat   *catalogs.Catalog
	tune  tuning.Tuning

	mu    sync.Mutex
	locks map[int64]*chatLock
}

// chatLock is dropped from the registry once nobody holds or waits on it.
type chatLock struct {
	sync.RWMutex
	refs int
}

func New(st store.Store, cat *catalogs.Catalog, tune tuning.Tuning) *Registry {
	return &Registry{
		store: st,
		cat:   cat,
		tune:  tune,
		locks: map[int64]*chatLock{},
	}
}

func (r *Registry) Store() store.Store         { return r.store }
func (r *Registry) Catalog() *catalogs.Catalog { return r.cat }
func (r *Registry) Tuning() tuning.Tuning      { return r.tune }

func (r *Registry) acquire(chatID int64) *chatLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[chatID]
	if !ok {
		l = &chatLock{}
		r.locks[chatID] = l
	}
	l.refs++
	return l
}

func (r *Registry) release(chatID int64, l *chatLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, chatID)
	}
}

// Update runs fn with exclusive access to chatID. Records fetched through
// the Tx are written back in one atomic batch if fn returns nil and they
// changed; if fn fails, or the write fails, nothing is persisted.
func (r *Registry) Update(ctx context.Context, chatID int64, fn func(tx *Tx) error) error {
	l := r.acquire(chatID)
	defer r.release(chatID, l)
	l.Lock()
	defer l.Unlock()

	tx := newTx(ctx, r, chatID, false)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn with shared access to chatID. Missing records are returned
// with their defaults but not persisted.
func (r *Registry) View(ctx context.Context, chatID int64, fn func(tx *Tx) error) error {
	l := r.acquire(chatID)
	defer r.release(chatID, l)
	l.RLock()
	defer l.RUnlock()

	return fn(newTx(ctx, r, chatID, true))
}

// GetChat returns the chat, materializing and persisting the default state
// if the chat is unknown. The returned value is a copy.
func (r *Registry) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	var out *model.Chat
	err := r.Update(ctx, chatID, func(tx *Tx) error {
		c, err := tx.Chat()
		out = c
		return err
	})
	return out, err
}

// GetPlayer returns the player, materializing and persisting the default
// state if the player is unknown. The returned value is a copy.
func (r *Registry) GetPlayer(ctx context.Context, chatID, playerID int64) (*model.Player, error) {
	var out *model.Player
	err := r.Update(ctx, chatID, func(tx *Tx) error {
		p, err := tx.Player(playerID)
		out = p
		return err
	})
	return out, err
}

type entry struct {
	key     string
	value   any
	initial []byte // encoding at load time; nil if the record did not exist
}

// Tx is the view of one chat's records during an Update or View. It is not
// safe for use outside the callback it was passed to.
type Tx struct {
	ctx      context.Context
	r        *Registry
	chatID   int64
	readOnly bool

	entries map[string]*entry
	order   []string
}

func newTx(ctx context.Context, r *Registry, chatID int64, readOnly bool) *Tx {
	return &Tx{
		ctx:      ctx,
		r:        r,
		chatID:   chatID,
		readOnly: readOnly,
		entries:  map[string]*entry{},
	}
}

func (tx *Tx) ChatID() int64              { return tx.chatID }
func (tx *Tx) Catalog() *catalogs.Catalog { return tx.r.cat }
func (tx *Tx) Tuning() tuning.Tuning      { return tx.r.tune }

func (tx *Tx) Chat() (*model.Chat, error) {
	t := tx.r.tune
	c, _, err := load(tx, model.ChatKey(tx.chatID), func() *model.Chat {
		return model.NewChat(tx.chatID, t.DefaultRules, t.DefaultWelcome)
	})
	if err != nil {
		return nil, err
	}
	c.Normalize()
	return c, nil
}

// Player returns the player record, creating it (and registering it in the
// chat roster) on first access.
func (tx *Tx) Player(playerID int64) (*model.Player, error) {
	assetIDs := tx.r.cat.Assets.Order
	p, created, err := load(tx, model.PlayerKey(tx.chatID, playerID), func() *model.Player {
		return model.NewPlayer(tx.chatID, playerID, assetIDs)
	})
	if err != nil {
		return nil, err
	}
	p.EnsureAssets(assetIDs)
	if created {
		c, err := tx.Chat()
		if err != nil {
			return nil, err
		}
		c.AddPlayer(playerID)
	}
	return p, nil
}

// Known reports whether the player had a stored record when the Tx began.
// It never creates the player, and a default created earlier in the same
// Tx does not count.
func (tx *Tx) Known(playerID int64) (bool, error) {
	key := model.PlayerKey(tx.chatID, playerID)
	if e, ok := tx.entries[key]; ok {
		return e.initial != nil, nil
	}
	_, found, err := tx.r.store.Get(tx.ctx, key)
	if err != nil {
		return false, errs.Persistence("load "+key, err)
	}
	return found, nil
}

func (tx *Tx) Materials(playerID int64) (*model.Materials, error) {
	m, _, err := load(tx, model.MaterialsKey(tx.chatID, playerID), func() *model.Materials {
		return model.NewMaterials(tx.chatID, playerID)
	})
	if err != nil {
		return nil, err
	}
	if m.Items == nil {
		m.Items = map[string]int64{}
	}
	return m, nil
}

func (tx *Tx) Units(playerID int64) (*model.Units, error) {
	u, _, err := load(tx, model.UnitsKey(tx.chatID, playerID), func() *model.Units {
		return model.NewUnits(tx.chatID, playerID)
	})
	if err != nil {
		return nil, err
	}
	if u.Counts == nil {
		u.Counts = map[string]int64{}
	}
	return u, nil
}

func (tx *Tx) Quests(playerID int64) (*model.QuestList, error) {
	q, _, err := load(tx, model.QuestsKey(tx.chatID, playerID), func() *model.QuestList {
		return model.NewQuestList(tx.chatID, playerID)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// load returns the record for key, decoding it from the store on first use
// within the Tx. The second result reports whether the default was used.
func load[T any](tx *Tx, key string, def func() *T) (*T, bool, error) {
	if e, ok := tx.entries[key]; ok {
		return e.value.(*T), false, nil
	}
	raw, found, err := tx.r.store.Get(tx.ctx, key)
	if err != nil {
		return nil, false, errs.Persistence("load "+key, err)
	}
	var v *T
	var initial []byte
	if found {
		v = new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, false, errs.Persistence("decode "+key, err)
		}
		initial = raw
	} else {
		v = def()
	}
	tx.entries[key] = &entry{key: key, value: v, initial: initial}
	tx.order = append(tx.order, key)
	return v, !found, nil
}

func (tx *Tx) commit() error {
	if tx.readOnly {
		return nil
	}
	var ops []store.Op
	for _, key := range tx.order {
		e := tx.entries[key]
		b, err := json.Marshal(e.value)
		if err != nil {
			return errs.Persistence("encode "+key, err)
		}
		if e.initial != nil && bytes.Equal(b, e.initial) {
			continue
		}
		ops = append(ops, store.Op{Key: key, Value: b})
	}
	if len(ops) == 0 {
		return nil
	}
	if err := tx.r.store.Apply(tx.ctx, ops); err != nil {
		return errs.Persistence("commit chat", err)
	}
	return nil
}
