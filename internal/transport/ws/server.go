package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/dispatch"
	"chatwars.ai/internal/protocol"
)

// maxInflight bounds the commands one connection may have running at once.
const maxInflight = 8

// Server speaks the command protocol to chat adapters over websocket: one
// HELLO/WELCOME handshake, then any number of CMD messages, each answered by
// a RESULT carrying the command id as ref. Results may arrive out of order.
type Server struct {
	disp *dispatch.Dispatcher
	log  *logrus.Entry

	upgrader websocket.Upgrader
}

func NewServer(d *dispatch.Dispatcher, logger *logrus.Logger) *Server {
	return &Server{
		disp: d,
		log:  logger.WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // adapters are not browsers
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, adapter := s.handshake(conn)
		if sessionID == "" {
			return
		}
		log := s.log.WithFields(logrus.Fields{"session_id": sessionID, "adapter": adapter})
		log.Info("adapter connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, maxInflight)

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		sem := make(chan struct{}, maxInflight)
		var inflight sync.WaitGroup
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd {
				s.send(ctx, out, protocol.ErrResult("", protocol.ErrProtoBadRequest, dispatch.ReasonMalformed, "expected CMD"))
				continue
			}
			var cmd protocol.CmdMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				s.send(ctx, out, protocol.ErrResult("", protocol.ErrProtoBadRequest, dispatch.ReasonMalformed, "bad CMD"))
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer func() { <-sem }()
				s.send(ctx, out, s.disp.Handle(ctx, cmd))
			}()
		}

		// Running commands finish before the connection closes.
		inflight.Wait()
		cancel()
		<-writeDone
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		log.Info("adapter disconnected")
	}
}

func (s *Server) send(ctx context.Context, out chan<- []byte, res protocol.ResultMsg) {
	b, err := json.Marshal(res)
	if err != nil {
		s.log.WithError(err).Error("encode result")
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID, adapter string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", ""
	}
	if hello.AdapterName == "" {
		hello.AdapterName = "adapter"
	}

	cat := s.disp.Engine().Catalog()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		CatalogDigest:   cat.Digest,
		CatalogVariant:  cat.Variant,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return welcome.SessionID, hello.AdapterName
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
