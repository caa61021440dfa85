// Package httpapi serves the command protocol over plain HTTP and the
// loopback-only admin endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/dispatch"
	"chatwars.ai/internal/persistence/snapshot"
	"chatwars.ai/internal/protocol"
	"chatwars.ai/internal/sim/alliance"
	"chatwars.ai/internal/sim/engine"
)

const maxBody = 64 * 1024

// SnapshotFunc writes a snapshot and reports where it went.
type SnapshotFunc func(ctx context.Context) (string, snapshot.Header, error)

type Server struct {
	disp     *dispatch.Dispatcher
	log      *logrus.Entry
	snapshot SnapshotFunc
}

func NewServer(d *dispatch.Dispatcher, snap SnapshotFunc, logger *logrus.Logger) *Server {
	return &Server{
		disp:     d,
		log:      logger.WithField("component", "http"),
		snapshot: snap,
	}
}

// Register mounts every endpoint on mux.
func (s *Server) Register(mux *http.ServeMux) {
	s.RegisterPublic(mux)
	mux.HandleFunc("GET /admin/v1/chats/{id}", s.ChatHandler())
	mux.HandleFunc("POST /admin/v1/snapshot", s.SnapshotHandler())
}

// RegisterPublic mounts the command endpoint and /healthz only.
func (s *Server) RegisterPublic(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/cmd", s.CmdHandler())
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte("ok\n"))
	})
}

func (s *Server) CmdHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil || len(body) > maxBody {
			writeJSON(rw, http.StatusBadRequest, protocol.ErrResult("", protocol.ErrProtoBadRequest, dispatch.ReasonMalformed, "body too large or unreadable"))
			return
		}
		var cmd protocol.CmdMsg
		if err := json.Unmarshal(body, &cmd); err != nil {
			writeJSON(rw, http.StatusBadRequest, protocol.ErrResult("", protocol.ErrProtoBadRequest, dispatch.ReasonMalformed, "bad CMD"))
			return
		}
		res := s.disp.Handle(r.Context(), cmd)
		status := http.StatusOK
		if res.Code == protocol.ErrInternal {
			status = http.StatusInternalServerError
		}
		writeJSON(rw, status, res)
	}
}

type ChatView struct {
	Chat        engine.ChatInfo           `json:"chat"`
	Alliances   []alliance.Summary        `json:"alliances"`
	Leaderboard []engine.LeaderboardEntry `json:"leaderboard"`
}

func (s *Server) ChatHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		chatID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(rw, "bad chat id", http.StatusBadRequest)
			return
		}
		eng := s.disp.Engine()
		ctx := r.Context()
		var v ChatView
		if v.Chat, err = eng.ChatInfo(ctx, chatID); err == nil {
			if v.Alliances, err = eng.AllianceList(ctx, chatID); err == nil {
				v.Leaderboard, err = eng.Leaderboard(ctx, chatID, engine.RankByPoints, 10)
			}
		}
		if err != nil {
			s.log.WithError(err).WithField("chat_id", chatID).Error("chat view")
			http.Error(rw, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(rw, http.StatusOK, v)
	}
}

func (s *Server) SnapshotHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if s.snapshot == nil {
			http.Error(rw, "snapshots disabled", http.StatusNotImplemented)
			return
		}
		path, h, err := s.snapshot(r.Context())
		if err != nil {
			s.log.WithError(err).Error("snapshot")
			http.Error(rw, "snapshot failed", http.StatusInternalServerError)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"path": path, "header": h})
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
