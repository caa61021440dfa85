package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"chatwars.ai/internal/sim/model"
)

// listCmd runs read-only queries straight against the records table, so it
// works on a database the server currently has open.
//
//	admin list kinds
//	admin list chats [-limit N]
//	admin list players -chat ID [-limit N]
func listCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dataDir, dbPath := dbPathFlag(fs)
	chatID := fs.Int64("chat", 0, "chat id (players)")
	limit := fs.Int("limit", 50, "result limit")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	q := "chats"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 50
	}

	path := resolveDB(*dataDir, *dbPath)
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	switch q {
	case "kinds":
		return listKinds(db, out)
	case "chats":
		return listChats(db, out, *limit)
	case "players":
		if *chatID == 0 {
			return fmt.Errorf("%w: list players needs -chat", errUsage)
		}
		return listPlayers(db, out, *chatID, *limit)
	default:
		return fmt.Errorf("%w: unknown list %q (kinds, chats, players)", errUsage, q)
	}
}

func listKinds(db *sql.DB, out io.Writer) error {
	rows, err := db.Query(`SELECT kind, COUNT(*) FROM records GROUP BY kind ORDER BY kind`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Kind  string `json:"kind"`
			Count int64  `json:"count"`
		}
		if err := rows.Scan(&r.Kind, &r.Count); err != nil {
			return err
		}
		if err := printJSON(out, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func listChats(db *sql.DB, out io.Writer, limit int) error {
	rows, err := db.Query(`SELECT value, updated_at FROM records WHERE kind = ? ORDER BY updated_at DESC LIMIT ?`, model.KindChat, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw, updated string
		if err := rows.Scan(&raw, &updated); err != nil {
			return err
		}
		var c model.Chat
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return err
		}
		r := struct {
			ChatID    int64  `json:"chat_id"`
			OwnerID   *int64 `json:"owner_id,omitempty"`
			Players   int    `json:"players"`
			Alliances int    `json:"alliances"`
			UpdatedAt string `json:"updated_at"`
		}{
			ChatID:    c.ID,
			OwnerID:   c.OwnerID,
			Players:   len(c.Players),
			Alliances: len(c.Alliances),
			UpdatedAt: updated,
		}
		if err := printJSON(out, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func listPlayers(db *sql.DB, out io.Writer, chatID int64, limit int) error {
	prefix := model.PlayerPrefix(chatID)
	// Keys carry no LIKE metacharacters, so a plain prefix match is exact.
	rows, err := db.Query(`SELECT value FROM records WHERE kind = ? AND key LIKE ? ORDER BY key LIMIT ?`, model.KindPlayer, prefix+"%", limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var p model.Player
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return err
		}
		r := struct {
			PlayerID    int64            `json:"player_id"`
			Points      int64            `json:"points"`
			Assets      map[string]int64 `json:"assets,omitempty"`
			BattlesWon  int64            `json:"battles_won"`
			BattlesLost int64            `json:"battles_lost"`
			Alliance    string           `json:"alliance,omitempty"`
		}{
			PlayerID:    p.ID,
			Points:      p.Points,
			Assets:      p.Assets,
			BattlesWon:  p.BattlesWon,
			BattlesLost: p.BattlesLost,
			Alliance:    p.Alliance,
		}
		if err := printJSON(out, r); err != nil {
			return err
		}
	}
	return rows.Err()
}
