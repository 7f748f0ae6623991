package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/talentlens/talentlens/internal/session"
)

// handleLiveSession upgrades the connection and runs the per-interview event
// loop: one sequential reader feeding the session coordinator, replies and
// pushes written back on the same socket.
//
// Teardown always goes through the coordinator so buffered audio and the
// emotion timeline are flushed even on an abrupt client disconnect.
func (s *Server) handleLiveSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetInterview(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "interview_id", id, "err", err)
		return
	}

	ctx := r.Context()
	if err := s.coordinator.Open(ctx, id); err != nil {
		s.logger.Warn("live session rejected", "interview_id", id, "err", err)
		conn.Close(websocket.StatusPolicyViolation, "session already active")
		return
	}

	s.readLoop(ctx, conn, id)

	// The request context dies with the socket; teardown still has to flush
	// audio and emotions to storage.
	closeCtx := context.WithoutCancel(ctx)
	if err := s.coordinator.Close(closeCtx, id); err != nil {
		s.logger.Error("live session teardown failed", "interview_id", id, "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, interviewID int64) {
	for {
		var env session.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Info("live session read ended", "interview_id", interviewID, "err", err)
			return
		}

		reply, err := s.coordinator.HandleEvent(ctx, interviewID, env)
		if err != nil {
			s.logger.Error("live event handling failed", "interview_id", interviewID, "type", env.Type, "err", err)
			return
		}
		if reply == nil {
			continue
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			s.logger.Info("live session write failed", "interview_id", interviewID, "err", err)
			return
		}
	}
}
