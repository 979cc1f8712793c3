package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
)

// Stream message types.
const (
	MessageFrame  = "frame"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage is one websocket message of a streamed simulation: a frame per tick,
// then the result, or an error.
type StreamMessage struct {
	Type   string           `json:"type"`
	Frame  *scenario.Frame  `json:"frame,omitempty"`
	Meta   *scenario.Meta   `json:"meta,omitempty"`
	Result *scenario.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// handleStream upgrades to a websocket, reads one scenario input and streams the run
// frame by frame. The run stops early if the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("request", RequestID(r.Context()))

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("server: websocket upgrade")
		return
	}
	defer c.Close()

	var in scenario.Input
	if err := c.ReadJSON(&in); err != nil {
		logger.WithError(err).Debug("server: reading stream input")
		send(c, logger, StreamMessage{Type: MessageError, Error: "invalid input JSON: " + err.Error()})
		return
	}
	sim, meta, err := in.Build(s.profiles)
	if err != nil {
		send(c, logger, StreamMessage{Type: MessageError, Error: err.Error()})
		return
	}
	sim.Record = false

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reading is mandatory to notice a close from the client side.
	go func() {
		for {
			if _, _, err := c.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	sim.Observer = func(f scenario.Frame) {
		if ctx.Err() != nil {
			return
		}
		if err := send(c, logger, StreamMessage{Type: MessageFrame, Frame: &f}); err != nil {
			cancel()
		}
	}
	res, err := sim.RunContext(ctx, meta.MaxTime)
	if err != nil {
		logger.WithError(err).Debug("server: stream aborted")
		return
	}

	if err := send(c, logger, StreamMessage{Type: MessageResult, Meta: &meta, Result: &res}); err != nil {
		return
	}
	closeStream(c, logger)
}

// streamConn is the part of a websocket connection a stream writes to.
type streamConn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
}

// send writes m, logging a failure. A failed write usually means the client is gone.
func send(c streamConn, logger *log.Entry, m StreamMessage) error {
	err := c.WriteJSON(m)
	if err != nil {
		logger.WithError(err).WithField("type", m.Type).Debug("server: stream write")
	}
	return err
}

// closeStream tells the client the stream ended normally.
func closeStream(c streamConn, logger *log.Entry) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.WriteMessage(websocket.CloseMessage, msg); err != nil {
		logger.WithError(err).Debug("server: stream close")
	}
}
