// ABOUTME: WebSocket dashboard feed
// ABOUTME: Forwards broadcaster events to connected dashboards as JSON frames

package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		s.writeError(w, http.StatusNotFound, "dashboard feed is disabled")
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	} else {
		// No configured origins: local dashboards only, any origin.
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Debug("websocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			s.logger.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	// No inbound messages are expected; CloseRead gives us a context that
	// cancels when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	events, subID := s.broadcaster.Subscribe(ctx)
	s.logger.Debug("dashboard connected", "sub_id", subID)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				s.logger.Debug("dashboard write failed", "sub_id", subID, "error", err)
				return
			}
		case <-ctx.Done():
			s.logger.Debug("dashboard disconnected", "sub_id", subID)
			return
		}
	}
}
