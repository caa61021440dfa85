// Package model holds the durable records of the game: one Chat per chat
// scope, one Player per (chat, player) pair, and the per-player extended
// economy records. Field names are part of the persisted contract.
package model

import (
	"slices"
	"time"
)

type Chat struct {
	ID      int64  `json:"id"`
	OwnerID *int64 `json:"owner_id,omitempty"`
	Rules   string `json:"rules"`
	Welcome string `json:"welcome_message"`

	Alliances       map[string]*Alliance `json:"alliances"`
	NextAllianceSeq uint64               `json:"next_alliance_seq"`

	// Players is the roster of player ids that have a record in this chat,
	// kept sorted. Player records are stored under their own keys.
	Players []int64 `json:"players"`
}

type Alliance struct {
	Name      string    `json:"name"`
	CreatorID int64     `json:"creator_id"`
	Members   []int64   `json:"members"`
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

type Player struct {
	ChatID int64 `json:"chat_id"`
	ID     int64 `json:"id"`

	Points       int64     `json:"points"`
	LastActivity time.Time `json:"last_activity"`

	Assets map[string]int64 `json:"assets"`

	BattlesWon  int64 `json:"battles_won"`
	BattlesLost int64 `json:"battles_lost"`

	Alliance string `json:"alliance,omitempty"`

	LastHarvest time.Time `json:"last_harvest"`
}

// Materials is the extended-economy resource inventory of one player.
type Materials struct {
	ChatID   int64            `json:"chat_id"`
	PlayerID int64            `json:"player_id"`
	Items    map[string]int64 `json:"items"`
}

// Units is the extended-economy worker roster of one player.
type Units struct {
	ChatID   int64            `json:"chat_id"`
	PlayerID int64            `json:"player_id"`
	Counts   map[string]int64 `json:"counts"`
}

// Quest statuses. A completed quest holds its reward until it is claimed.
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestClaimed   = "claimed"
)

type Quest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Count    int64   `json:"count"`
	Target   int64   `json:"target"`
	Reward   int64   `json:"reward"`
}

type QuestList struct {
	ChatID   int64   `json:"chat_id"`
	PlayerID int64   `json:"player_id"`
	Quests   []Quest `json:"quests"`
}

// NewChat returns the state of a chat nobody has touched yet.
func NewChat(id int64, rules, welcome string) *Chat {
	return &Chat{
		ID:        id,
		Rules:     rules,
		Welcome:   welcome,
		Alliances: map[string]*Alliance{},
		Players:   []int64{},
	}
}

// NewPlayer returns a fresh player with a zero count for every asset id.
func NewPlayer(chatID, playerID int64, assetIDs []string) *Player {
	p := &Player{
		ChatID: chatID,
		ID:     playerID,
		Assets: make(map[string]int64, len(assetIDs)),
	}
	p.EnsureAssets(assetIDs)
	return p
}

func NewMaterials(chatID, playerID int64) *Materials {
	return &Materials{ChatID: chatID, PlayerID: playerID, Items: map[string]int64{}}
}

func NewUnits(chatID, playerID int64) *Units {
	return &Units{ChatID: chatID, PlayerID: playerID, Counts: map[string]int64{}}
}

func NewQuestList(chatID, playerID int64) *QuestList {
	return &QuestList{ChatID: chatID, PlayerID: playerID, Quests: []Quest{}}
}

// EnsureAssets adds a zero entry for any catalog asset the record does not
// know yet. Counts for assets no longer in the catalog are left alone.
func (p *Player) EnsureAssets(assetIDs []string) {
	if p.Assets == nil {
		p.Assets = make(map[string]int64, len(assetIDs))
	}
	for _, id := range assetIDs {
		if _, ok := p.Assets[id]; !ok {
			p.Assets[id] = 0
		}
	}
}

func (c *Chat) Normalize() {
	if c.Alliances == nil {
		c.Alliances = map[string]*Alliance{}
	}
	if c.Players == nil {
		c.Players = []int64{}
	}
}

func (c *Chat) HasPlayer(id int64) bool {
	_, ok := slices.BinarySearch(c.Players, id)
	return ok
}

// AddPlayer inserts id into the roster, keeping it sorted. It reports
// whether the roster changed.
func (c *Chat) AddPlayer(id int64) bool {
	i, ok := slices.BinarySearch(c.Players, id)
	if ok {
		return false
	}
	c.Players = slices.Insert(c.Players, i, id)
	return true
}

// SortedAlliances returns the alliances in creation order.
func (c *Chat) SortedAlliances() []*Alliance {
	out := make([]*Alliance, 0, len(c.Alliances))
	for _, a := range c.Alliances {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Alliance) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (a *Alliance) HasMember(id int64) bool {
	return slices.Contains(a.Members, id)
}
