package model

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KindChat      = "chat"
	KindPlayer    = "player"
	KindMaterials = "materials"
	KindUnits     = "units"
	KindQuests    = "quests"
)

func ChatKey(chatID int64) string {
	return KindChat + ":" + strconv.FormatInt(chatID, 10)
}

func PlayerKey(chatID, playerID int64) string {
	return scopedKey(KindPlayer, chatID, playerID)
}

func MaterialsKey(chatID, playerID int64) string {
	return scopedKey(KindMaterials, chatID, playerID)
}

func UnitsKey(chatID, playerID int64) string {
	return scopedKey(KindUnits, chatID, playerID)
}

func QuestsKey(chatID, playerID int64) string {
	return scopedKey(KindQuests, chatID, playerID)
}

// PlayerPrefix is the key prefix shared by every player record of a chat.
func PlayerPrefix(chatID int64) string {
	return KindPlayer + ":" + strconv.FormatInt(chatID, 10) + ":"
}

func scopedKey(kind string, chatID, playerID int64) string {
	return kind + ":" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(playerID, 10)
}

// Key is a parsed store key.
type Key struct {
	Kind     string
	ChatID   int64
	PlayerID int64
}

func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	var k Key
	switch {
	case len(parts) == 2 && parts[0] == KindChat:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return k, fmt.Errorf("bad chat key %q: %w", s, err)
		}
		return Key{Kind: KindChat, ChatID: id}, nil
	case len(parts) == 3:
		switch parts[0] {
		case KindPlayer, KindMaterials, KindUnits, KindQuests:
		default:
			return k, fmt.Errorf("unknown key kind %q", parts[0])
		}
		chatID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return k, fmt.Errorf("bad key %q: %w", s, err)
		}
		playerID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return k, fmt.Errorf("bad key %q: %w", s, err)
		}
		return Key{Kind: parts[0], ChatID: chatID, PlayerID: playerID}, nil
	default:
		return k, fmt.Errorf("malformed key %q", s)
	}
}
