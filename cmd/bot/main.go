package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/logging"
	"chatwars.ai/internal/protocol"
)

// bot plays as a handful of players in one chat: every round each player
// sends a message and then, at random, buys soldiers or attacks someone.
type bot struct {
	conn    *websocket.Conn
	log     *logrus.Entry
	rng     *rand.Rand
	chatID  int64
	players []int64
	seq     int

	// Results seen so far, by protocol code ("" for OK).
	codes map[string]int
}

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "adapter name")
		chatID  = flag.Int64("chat", 1, "chat id to play in")
		players = flag.Int("players", 4, "number of simulated players")
		rounds  = flag.Int("rounds", 0, "rounds to play (0 = until interrupted)")
		every   = flag.Duration("every", time.Second, "delay between rounds")
		seed    = flag.Uint64("seed", 1, "rng seed")
	)
	flag.Parse()

	base, _ := logging.New("info", "text", os.Stdout)
	logger := base.WithField("component", "bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.WithError(err).Fatal("dial")
	}
	defer conn.Close()

	b := newBot(conn, logger, *chatID, *players, *seed)
	if err := b.handshake(*name); err != nil {
		logger.WithError(err).Fatal("handshake")
	}
	for i := 0; *rounds == 0 || i < *rounds; i++ {
		if err := b.round(); err != nil {
			logger.WithError(err).Error("round")
			return
		}
		select {
		case <-ctx.Done():
			logger.WithField("results", b.codes).Info("stopped")
			return
		case <-time.After(*every):
		}
	}
	logger.WithField("results", b.codes).Info("done")
}

func newBot(conn *websocket.Conn, log *logrus.Entry, chatID int64, players int, seed uint64) *bot {
	b := &bot{
		conn:   conn,
		log:    log,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		chatID: chatID,
		codes:  map[string]int{},
	}
	for i := 1; i <= players; i++ {
		b.players = append(b.players, int64(i))
	}
	return b
}

func (b *bot) handshake(name string) error {
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AdapterName: name}
	if err := b.conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	var w protocol.WelcomeMsg
	if err := b.conn.ReadJSON(&w); err != nil {
		return fmt.Errorf("read WELCOME: %w", err)
	}
	if w.Type != protocol.TypeWelcome {
		return fmt.Errorf("expected WELCOME, got %q", w.Type)
	}
	b.log.WithFields(logrus.Fields{"session_id": w.SessionID, "catalog": w.CatalogVariant}).Info("WELCOME")
	return nil
}

// round sends one batch of commands and waits for every result. Results
// may come back in any order.
func (b *bot) round() error {
	var sent []protocol.CmdMsg
	for _, p := range b.players {
		sent = append(sent, b.cmd(protocol.OpActivity, p))
		switch b.rng.IntN(3) {
		case 0:
			c := b.cmd(protocol.OpPurchase, p)
			c.Asset, c.Quantity = "soldier", 1+b.rng.Int64N(3)
			sent = append(sent, c)
		case 1:
			c := b.cmd(protocol.OpAttack, p)
			c.Target = b.players[b.rng.IntN(len(b.players))]
			sent = append(sent, c)
		}
	}
	for _, c := range sent {
		if err := b.conn.WriteJSON(c); err != nil {
			return err
		}
	}

	pending := make(map[string]protocol.CmdMsg, len(sent))
	for _, c := range sent {
		pending[c.ID] = c
	}
	for len(pending) > 0 {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			return err
		}
		var res protocol.ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			return err
		}
		c, ok := pending[res.Ref]
		if !ok {
			return fmt.Errorf("result for unknown ref %q", res.Ref)
		}
		delete(pending, res.Ref)
		b.codes[res.Code]++
		if !res.OK {
			b.log.WithFields(logrus.Fields{"op": c.Op, "player_id": c.PlayerID, "code": res.Code, "reason": res.Reason}).Debug("rejected")
		}
	}
	return nil
}

func (b *bot) cmd(op string, playerID int64) protocol.CmdMsg {
	b.seq++
	return protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              strconv.Itoa(b.seq),
		ChatID:          b.chatID,
		PlayerID:        playerID,
		Op:              op,
		Timestamp:       time.Now().UnixMilli(),
	}
}
