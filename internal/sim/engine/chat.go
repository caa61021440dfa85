package engine

import (
	"context"
	"maps"
	"slices"
	"strings"

	"chatwars.ai/internal/sim/economy"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
	"chatwars.ai/internal/sim/registry"
)

type PlayerSummary struct {
	ChatID      int64            `json:"chat_id"`
	PlayerID    int64            `json:"player_id"`
	Points      int64            `json:"points"`
	Power       int64            `json:"power"`
	BattlesWon  int64            `json:"battles_won"`
	BattlesLost int64            `json:"battles_lost"`
	Alliance    string           `json:"alliance,omitempty"`
	Assets      map[string]int64 `json:"assets"`
	Materials   map[string]int64 `json:"materials,omitempty"`
	Units       map[string]int64 `json:"units,omitempty"`
}

type ChatInfo struct {
	ChatID        int64  `json:"chat_id"`
	OwnerID       *int64 `json:"owner_id,omitempty"`
	Rules         string `json:"rules"`
	Welcome       string `json:"welcome_message"`
	PlayerCount   int    `json:"player_count"`
	AllianceCount int    `json:"alliance_count"`
}

const (
	RankByPoints = "points"
	RankByPower  = "power"
	RankByWins   = "wins"
)

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID int64  `json:"player_id"`
	Value    int64  `json:"value"`
	Alliance string `json:"alliance,omitempty"`
}

// PlayerSummary is a read-only view of one player. Unknown players are
// reported with their default state.
func (e *Engine) PlayerSummary(ctx context.Context, chatID, playerID int64) (PlayerSummary, error) {
	var s PlayerSummary
	err := e.reg.View(ctx, chatID, func(tx *registry.Tx) error {
		p, err := tx.Player(playerID)
		if err != nil {
			return err
		}
		s = PlayerSummary{
			ChatID:      chatID,
			PlayerID:    playerID,
			Points:      p.Points,
			Power:       economy.TotalPower(p, e.cat),
			BattlesWon:  p.BattlesWon,
			BattlesLost: p.BattlesLost,
			Alliance:    p.Alliance,
			Assets:      maps.Clone(p.Assets),
		}
		if len(e.cat.Materials.Order) > 0 {
			m, err := tx.Materials(playerID)
			if err != nil {
				return err
			}
			s.Materials = maps.Clone(m.Items)
		}
		if len(e.cat.Units.Order) > 0 {
			u, err := tx.Units(playerID)
			if err != nil {
				return err
			}
			s.Units = maps.Clone(u.Counts)
		}
		return nil
	})
	if err != nil {
		return PlayerSummary{}, e.done("summary", chatID, playerID, err)
	}
	return s, nil
}

func (e *Engine) ChatInfo(ctx context.Context, chatID int64) (ChatInfo, error) {
	var info ChatInfo
	err := e.reg.View(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		info = ChatInfo{
			ChatID:        chatID,
			Rules:         c.Rules,
			Welcome:       c.Welcome,
			PlayerCount:   len(c.Players),
			AllianceCount: len(c.Alliances),
		}
		if c.OwnerID != nil {
			id := *c.OwnerID
			info.OwnerID = &id
		}
		return nil
	})
	if err != nil {
		return ChatInfo{}, e.done("chat_info", chatID, 0, err)
	}
	return info, nil
}

// ChatGuard authorizes a change to chat settings. It runs under the chat
// lock against the state the change will be applied to; a nil guard allows
// the change.
type ChatGuard func(c *model.Chat) error

// OwnerOrUnclaimed lets anyone change the settings of a chat nobody owns,
// and only the owner once it is claimed.
func OwnerOrUnclaimed(actorID int64) ChatGuard {
	return func(c *model.Chat) error {
		if c.OwnerID != nil && *c.OwnerID != actorID {
			return errs.ErrNotOwner.Withf("chat %d is owned by %d", c.ID, *c.OwnerID)
		}
		return nil
	}
}

// SetOwner records the administrative owner of a chat.
func (e *Engine) SetOwner(ctx context.Context, chatID, ownerID int64, guard ChatGuard) error {
	err := e.updateChat(ctx, chatID, guard, func(c *model.Chat) { c.OwnerID = &ownerID })
	if err != nil {
		return e.done("set_owner", chatID, ownerID, err)
	}
	e.record(chatID, ownerID, "set_owner", nil)
	return nil
}

func (e *Engine) SetRules(ctx context.Context, chatID, actorID int64, rules string, guard ChatGuard) error {
	err := e.updateChat(ctx, chatID, guard, func(c *model.Chat) { c.Rules = strings.TrimSpace(rules) })
	if err != nil {
		return e.done("set_rules", chatID, actorID, err)
	}
	e.record(chatID, actorID, "set_rules", nil)
	return nil
}

func (e *Engine) SetWelcome(ctx context.Context, chatID, actorID int64, welcome string, guard ChatGuard) error {
	err := e.updateChat(ctx, chatID, guard, func(c *model.Chat) { c.Welcome = strings.TrimSpace(welcome) })
	if err != nil {
		return e.done("set_welcome", chatID, actorID, err)
	}
	e.record(chatID, actorID, "set_welcome", nil)
	return nil
}

func (e *Engine) updateChat(ctx context.Context, chatID int64, guard ChatGuard, apply func(c *model.Chat)) error {
	return e.reg.Update(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(c); err != nil {
				return err
			}
		}
		apply(c)
		return nil
	})
}

// Leaderboard ranks the chat's players by points, power or battles won,
// highest first, ties broken by player id.
func (e *Engine) Leaderboard(ctx context.Context, chatID int64, by string, limit int) ([]LeaderboardEntry, error) {
	if by == "" {
		by = RankByPoints
	}
	switch by {
	case RankByPoints, RankByPower, RankByWins:
	default:
		return nil, e.done("leaderboard", chatID, 0, errs.ErrInvalidRanking.Withf("unknown ranking %q", by))
	}
	if limit <= 0 {
		limit = 10
	}
	var out []LeaderboardEntry
	err := e.reg.View(ctx, chatID, func(tx *registry.Tx) error {
		c, err := tx.Chat()
		if err != nil {
			return err
		}
		out = make([]LeaderboardEntry, 0, len(c.Players))
		for _, id := range c.Players {
			p, err := tx.Player(id)
			if err != nil {
				return err
			}
			var v int64
			switch by {
			case RankByPoints:
				v = p.Points
			case RankByPower:
				v = economy.TotalPower(p, e.cat)
			case RankByWins:
				v = p.BattlesWon
			}
			out = append(out, LeaderboardEntry{PlayerID: id, Value: v, Alliance: p.Alliance})
		}
		return nil
	})
	if err != nil {
		return nil, e.done("leaderboard", chatID, 0, err)
	}
	slices.SortStableFunc(out, func(a, b LeaderboardEntry) int {
		switch {
		case a.Value != b.Value:
			if a.Value > b.Value {
				return -1
			}
			return 1
		case a.PlayerID < b.PlayerID:
			return -1
		case a.PlayerID > b.PlayerID:
			return 1
		default:
			return 0
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
