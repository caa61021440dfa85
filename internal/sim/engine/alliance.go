package engine

import (
	"context"

	"chatwars.ai/internal/sim/alliance"
	"chatwars.ai/internal/sim/registry"
)

type LeaveResult struct {
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

func (e *Engine) AllianceCreate(ctx context.Context, chatID, playerID int64, name string) (alliance.Summary, error) {
	var res alliance.Summary
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		a, err := alliance.Create(c, p, name, e.now())
		if err != nil {
			return err
		}
		res = alliance.Summary{Name: a.Name, CreatorID: a.CreatorID, MemberCount: len(a.Members)}
		return nil
	})
	if err != nil {
		return alliance.Summary{}, e.done("alliance_create", chatID, playerID, err)
	}
	e.record(chatID, playerID, "alliance_create", map[string]any{"name": res.Name})
	return res, nil
}

func (e *Engine) AllianceJoin(ctx context.Context, chatID, playerID int64, name string) (alliance.Summary, error) {
	var res alliance.Summary
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		a, err := alliance.Join(c, p, name)
		if err != nil {
			return err
		}
		res = alliance.Summary{Name: a.Name, CreatorID: a.CreatorID, MemberCount: len(a.Members)}
		return nil
	})
	if err != nil {
		return alliance.Summary{}, e.done("alliance_join", chatID, playerID, err)
	}
	e.record(chatID, playerID, "alliance_join", map[string]any{"name": res.Name})
	return res, nil
}

func (e *Engine) AllianceLeave(ctx context.Context, chatID, playerID int64) (LeaveResult, error) {
	var res LeaveResult
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		res.Name, res.Deleted, err = alliance.Leave(c, p)
		return err
	})
	if err != nil {
		return LeaveResult{}, e.done("alliance_leave", chatID, playerID, err)
	}
	e.record(chatID, playerID, "alliance_leave", map[string]any{"name": res.Name, "deleted": res.Deleted})
	return res, nil
}

func (e *Engine) AllianceList(ctx context.Context, chatID int64) ([]alliance.Summary, error) {
	var out []alliance.Summary
	err := e.reg.View(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		out = alliance.List(c)
		return nil
	})
	if err != nil {
		return nil, e.done("alliance_list", chatID, 0, err)
	}
	return out, nil
}
