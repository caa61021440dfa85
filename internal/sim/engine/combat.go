package engine

import (
	"context"

	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/combat"
	"chatwars.ai/internal/sim/economy"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
	"chatwars.ai/internal/sim/registry"
)

// Attack resolves one battle. Both player records are read, mutated and
// written under the chat lock in a single batch. A defender with no stored
// record has no power, and is not created by being attacked.
func (e *Engine) Attack(ctx context.Context, chatID, attackerID, defenderID int64) (combat.Outcome, error) {
	if attackerID == defenderID {
		return combat.Outcome{}, e.done("attack", chatID, attackerID, errs.ErrSelfAttack)
	}
	var out combat.Outcome
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		a, err := tx.Player(attackerID)
		if err != nil {
			return err
		}
		known, err := tx.Known(defenderID)
		if err != nil {
			return err
		}
		d := model.NewPlayer(chatID, defenderID, e.cat.Assets.Order)
		if known {
			if d, err = tx.Player(defenderID); err != nil {
				return err
			}
		}
		out, err = combat.Resolve(a, d, economy.TotalPower(a, e.cat), economy.TotalPower(d, e.cat), e.combat, e.rng)
		if err != nil {
			return err
		}
		return e.advanceQuests(tx, out.WinnerID, catalogs.QuestBattleWin, 1)
	})
	if err != nil {
		return combat.Outcome{}, e.done("attack", chatID, attackerID, err)
	}
	e.record(chatID, attackerID, "attack", map[string]any{
		"defender":    defenderID,
		"winner":      out.WinnerID,
		"transferred": out.Transferred,
	})
	return out, nil
}
