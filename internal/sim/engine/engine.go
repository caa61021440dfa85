// Package engine is the procedure-call surface of the game. Every mutating
// call runs inside one registry.Update, so it either fully succeeds and is
// persisted before returning, or leaves the stored state untouched.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/persistence/store"
	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/combat"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/registry"
	"chatwars.ai/internal/sim/tuning"
)

// AuditEntry records one successful mutation.
type AuditEntry struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	ChatID  int64          `json:"chat_id"`
	Actor   int64          `json:"actor"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

type Auditor interface {
	WriteAudit(AuditEntry) error
}

type Options struct {
	Store   store.Store
	Catalog *catalogs.Catalog
	Tuning  tuning.Tuning
	// Rand drives combat rolls. Defaults to a time-seeded source.
	Rand   combat.Rand
	Audit  Auditor
	Logger *logrus.Logger
	// Now is the engine clock for operations that do not carry their own
	// timestamp. Defaults to time.Now.
	Now func() time.Time
}

type Engine struct {
	reg    *registry.Registry
	cat    *catalogs.Catalog
	tune   tuning.Tuning
	combat combat.Params
	rng    combat.Rand
	audit  Auditor
	log    *logrus.Logger
	now    func() time.Time
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: nil store")
	}
	if opts.Catalog == nil {
		return nil, errors.New("engine: nil catalog")
	}
	if err := opts.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		reg:   registry.New(opts.Store, opts.Catalog, opts.Tuning),
		cat:   opts.Catalog,
		tune:  opts.Tuning,
		rng:   opts.Rand,
		audit: opts.Audit,
		log:   opts.Logger,
		now:   opts.Now,
	}
	c := opts.Tuning.Combat
	e.combat = combat.Params{
		VarianceMin:    c.VarianceMin,
		VarianceMax:    c.VarianceMax,
		AttackerCap:    c.AttackerCap,
		AttackerFactor: c.AttackerFactor,
		DefenderCap:    c.DefenderCap,
		DefenderFactor: c.DefenderFactor,
	}
	if e.rng == nil {
		e.rng = combat.NewRand(uint64(time.Now().UnixNano()))
	}
	if e.log == nil {
		e.log = logrus.New()
		e.log.SetLevel(logrus.WarnLevel)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

func (e *Engine) Catalog() *catalogs.Catalog   { return e.cat }
func (e *Engine) Tuning() tuning.Tuning        { return e.tune }
func (e *Engine) Registry() *registry.Registry { return e.reg }

// done logs the outcome of an operation and passes err through.
func (e *Engine) done(op string, chatID, playerID int64, err error) error {
	if err == nil {
		return nil
	}
	f := e.log.WithFields(logrus.Fields{
		"op":        op,
		"chat_id":   chatID,
		"player_id": playerID,
		"code":      errs.CodeOf(err),
	})
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindState:
		f.Debug("rejected")
	case errs.KindPersistence:
		f.WithError(err).Error("persistence failure")
	default:
		// Anything unclassified came from below the registry; treat it as a
		// store failure so callers still get a typed error.
		f.WithError(err).Error("unclassified failure")
		return errs.Persistence(op, err)
	}
	return err
}

func (e *Engine) record(chatID, actor int64, action string, details map[string]any) {
	e.log.WithFields(logrus.Fields{"op": action, "chat_id": chatID, "player_id": actor}).Debug("applied")
	if e.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:      ulid.Make().String(),
		Time:    e.now().UTC(),
		ChatID:  chatID,
		Actor:   actor,
		Action:  action,
		Details: details,
	}
	if err := e.audit.WriteAudit(entry); err != nil {
		e.log.WithError(err).WithField("action", action).Warn("audit write failed")
	}
}
