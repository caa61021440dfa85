package engine

import (
	"context"
	"maps"
	"time"

	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/economy"
	"chatwars.ai/internal/sim/model"
	"chatwars.ai/internal/sim/quests"
	"chatwars.ai/internal/sim/registry"
)

type PurchaseResult struct {
	AssetID         string `json:"asset_id"`
	Quantity        int64  `json:"quantity"`
	Owned           int64  `json:"owned"`
	RemainingPoints int64  `json:"remaining_points"`
	Power           int64  `json:"power"`
}

type HireResult struct {
	UnitID          string `json:"unit_id"`
	Quantity        int64  `json:"quantity"`
	Owned           int64  `json:"owned"`
	RemainingPoints int64  `json:"remaining_points"`
}

type QuestClaimResult struct {
	QuestID string `json:"quest_id"`
	Reward  int64  `json:"reward"`
	Points  int64  `json:"points"`
}

type HarvestResult struct {
	Harvested bool             `json:"harvested"`
	Gained    map[string]int64 `json:"gained,omitempty"`
	Materials map[string]int64 `json:"materials"`
	NextAt    time.Time        `json:"next_at"`
}

// OnActivity credits points for a chat message sent at ts. It reports
// whether points were awarded; a message inside the cooldown is a no-op.
func (e *Engine) OnActivity(ctx context.Context, chatID, playerID int64, ts time.Time) (bool, error) {
	var awarded bool
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		awarded = economy.AwardActivity(p, ts, e.tune.PointsPerMessage, e.tune.ActivityCooldown)
		if !awarded {
			return nil
		}
		return e.advanceQuests(tx, playerID, catalogs.QuestActivity, 1)
	})
	if err != nil {
		return false, e.done("activity", chatID, playerID, err)
	}
	if awarded {
		e.record(chatID, playerID, "activity", map[string]any{"points": e.tune.PointsPerMessage})
	}
	return awarded, nil
}

// Purchase buys quantity of assetID. Points, materials and the asset count
// change together or not at all.
func (e *Engine) Purchase(ctx context.Context, chatID, playerID int64, assetID string, quantity int64) (PurchaseResult, error) {
	var res PurchaseResult
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		var mats *model.Materials
		if def, ok := e.cat.Asset(assetID); ok && len(def.Materials) > 0 {
			if mats, err = tx.Materials(playerID); err != nil {
				return err
			}
		}
		if _, err := economy.Purchase(p, mats, e.cat, assetID, quantity); err != nil {
			return err
		}
		if err := e.advanceQuests(tx, playerID, catalogs.QuestPurchase, quantity); err != nil {
			return err
		}
		res = PurchaseResult{
			AssetID:         assetID,
			Quantity:        quantity,
			Owned:           p.Assets[assetID],
			RemainingPoints: p.Points,
			Power:           economy.TotalPower(p, e.cat),
		}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, e.done("purchase", chatID, playerID, err)
	}
	e.record(chatID, playerID, "purchase", map[string]any{"asset": assetID, "quantity": quantity, "remaining": res.RemainingPoints})
	return res, nil
}

// Hire recruits worker units (extended catalog only).
func (e *Engine) Hire(ctx context.Context, chatID, playerID int64, unitID string, quantity int64) (HireResult, error) {
	var res HireResult
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		units, err := tx.Units(playerID)
		if err != nil {
			return err
		}
		left, err := economy.Hire(p, units, e.cat, unitID, quantity)
		if err != nil {
			return err
		}
		res = HireResult{UnitID: unitID, Quantity: quantity, Owned: units.Counts[unitID], RemainingPoints: left}
		return nil
	})
	if err != nil {
		return HireResult{}, e.done("hire", chatID, playerID, err)
	}
	e.record(chatID, playerID, "hire", map[string]any{"unit": unitID, "quantity": quantity})
	return res, nil
}

// Harvest collects the materials produced by the player's units.
func (e *Engine) Harvest(ctx context.Context, chatID, playerID int64) (HarvestResult, error) {
	now := e.now()
	var res HarvestResult
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		units, err := tx.Units(playerID)
		if err != nil {
			return err
		}
		mats, err := tx.Materials(playerID)
		if err != nil {
			return err
		}
		gained := economy.Harvest(p, units, mats, e.cat, now, e.tune.HarvestCooldown)
		res = HarvestResult{
			Harvested: gained != nil,
			Gained:    gained,
			Materials: maps.Clone(mats.Items),
			NextAt:    p.LastHarvest.Add(e.tune.HarvestCooldown),
		}
		return nil
	})
	if err != nil {
		return HarvestResult{}, e.done("harvest", chatID, playerID, err)
	}
	if res.Harvested {
		e.record(chatID, playerID, "harvest", map[string]any{"gained": res.Gained})
	}
	return res, nil
}

// Quests lists the player's quests. Quests not yet assigned are shown as
// fresh; they are persisted the next time progress is made.
func (e *Engine) Quests(ctx context.Context, chatID, playerID int64) ([]model.Quest, error) {
	var out []model.Quest
	err := e.reg.View(ctx, chatID, func(tx *registry.Tx) error {
		list, err := tx.Quests(playerID)
		if err != nil {
			return err
		}
		quests.Ensure(list, e.cat)
		out = append([]model.Quest(nil), list.Quests...)
		return nil
	})
	if err != nil {
		return nil, e.done("quests", chatID, playerID, err)
	}
	return out, nil
}

// QuestClaim pays out a completed quest. It is the only way quest rewards
// reach a player's points.
func (e *Engine) QuestClaim(ctx context.Context, chatID, playerID int64, questID string) (QuestClaimResult, error) {
	var res QuestClaimResult
	err := e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		list, err := tx.Quests(playerID)
		if err != nil {
			return err
		}
		quests.Ensure(list, e.cat)
		q, err := quests.Claim(list, p, questID)
		if err != nil {
			return err
		}
		res = QuestClaimResult{QuestID: q.ID, Reward: q.Reward, Points: p.Points}
		return nil
	})
	if err != nil {
		return QuestClaimResult{}, e.done("quest_claim", chatID, playerID, err)
	}
	e.record(chatID, playerID, "quest_claim", map[string]any{"quest": res.QuestID, "reward": res.Reward})
	return res, nil
}

func (e *Engine) advanceQuests(tx *registry.Tx, playerID int64, questType string, n int64) error {
	if len(e.cat.Quests.Order) == 0 {
		return nil
	}
	list, err := tx.Quests(playerID)
	if err != nil {
		return err
	}
	quests.Ensure(list, e.cat)
	for _, q := range quests.Advance(list, questType, n) {
		e.log.WithFields(logrus.Fields{"chat_id": tx.ChatID(), "player_id": playerID, "quest": q.ID}).Debug("quest completed")
	}
	return nil
}
