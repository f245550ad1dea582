package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"dental-quest-service/internal/app"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	service  *app.AssessmentService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AssessmentService, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// wsConn is the per-connection state: the current attempt and the goroutine
// forwarding its events.
type wsConn struct {
	h            *WSHandler
	ctx          context.Context
	userID       string
	assessmentID string

	send         chan outboundMessage[any]
	closeSignals chan struct{}
	forwarders   sync.WaitGroup

	attempt     *app.Attempt
	unsubscribe func()
}

// ServeWS upgrades HTTP requests to websockets and drives one user's attempts
// on a single assessment. Closing the socket abandons an unfinished attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	assessmentID := r.URL.Query().Get("assessmentId")
	userID := r.URL.Query().Get("userId")
	if assessmentID == "" || userID == "" {
		http.Error(w, "missing assessmentId or userId", http.StatusBadRequest)
		return
	}

	def, err := h.service.Assessment(r.Context(), assessmentID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsConn{
		h:            h,
		ctx:          r.Context(),
		userID:       userID,
		assessmentID: assessmentID,
		send:         make(chan outboundMessage[any], 16),
		closeSignals: make(chan struct{}),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range c.send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				failed = true
				// unblocks the read loop below
				conn.Close()
			}
		}
	}()

	c.send <- outboundMessage[any]{Type: "ready", Payload: def}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(inbound)
	}

	c.shutdown()
	close(c.send)
	<-writerDone
}

type selectPayload struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption"`
}

func (c *wsConn) handle(inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		if c.attempt != nil && c.attempt.Status() == app.StatusInProgress {
			c.sendError("attempt already in progress")
			return
		}
		attempt, err := c.h.service.Start(c.ctx, c.userID, c.assessmentID)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.follow(attempt)
		c.send <- outboundMessage[any]{Type: "started", Payload: attempt.View()}
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.sendError("invalid select payload")
			return
		}
		if !c.requireAttempt() {
			return
		}
		view, err := c.h.service.Select(c.attempt.ID(), payload.QuestionIndex, payload.SelectedOption)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.send <- outboundMessage[any]{Type: "selected", Payload: view}
	case "next", "previous":
		if !c.requireAttempt() {
			return
		}
		move := c.h.service.Next
		if inbound.Type == "previous" {
			move = c.h.service.Previous
		}
		view, err := move(c.attempt.ID())
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.send <- outboundMessage[any]{Type: "cursor", Payload: view}
	case "submit":
		if !c.requireAttempt() {
			return
		}
		alreadySubmitted := c.attempt.Status() == app.StatusSubmitted
		outcome, err := c.h.service.Submit(c.ctx, c.attempt.ID())
		if err != nil {
			c.sendError(err.Error())
			return
		}
		// A fresh submission is announced by the attempt's own result event.
		if alreadySubmitted {
			c.send <- outboundMessage[any]{Type: "result", Payload: app.Event{
				Type:      app.EventResult,
				AttemptID: c.attempt.ID(),
				Outcome:   &outcome,
			}}
		}
	case "retry":
		if !c.requireAttempt() {
			return
		}
		attempt, err := c.h.service.Retry(c.ctx, c.attempt.ID())
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.follow(attempt)
		c.send <- outboundMessage[any]{Type: "started", Payload: attempt.View()}
	default:
		c.sendError("unsupported message type")
	}
}

func (c *wsConn) requireAttempt() bool {
	if c.attempt == nil {
		c.sendError("no attempt started")
		return false
	}
	return true
}

// follow makes attempt the connection's current one and forwards its events.
func (c *wsConn) follow(attempt *app.Attempt) {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	events, cancel := attempt.Subscribe()
	c.attempt = attempt
	c.unsubscribe = cancel

	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for ev := range events {
			select {
			case c.send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
			case <-c.closeSignals:
				return
			}
		}
	}()
}

// shutdown abandons an unfinished attempt and stops all forwarders.
func (c *wsConn) shutdown() {
	close(c.closeSignals)
	if c.attempt != nil {
		if c.attempt.Status() == app.StatusInProgress {
			_ = c.h.service.Abandon(c.attempt.ID())
		}
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.forwarders.Wait()
}

func (c *wsConn) sendError(message string) {
	c.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
