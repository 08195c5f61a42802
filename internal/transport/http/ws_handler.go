package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"course-quiz-service/internal/app"
	"course-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
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

type selectPayload struct {
	Index *int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type answerPayload struct {
	Answer domain.Answer      `json:"answer"`
	View   domain.SessionView `json:"view"`
}

type completedPayload struct {
	SessionID string         `json:"sessionId"`
	Results   domain.Results `json:"results"`
}

type exitedPayload struct {
	SessionID string `json:"sessionId"`
}

var errUnsupported = errors.New("unsupported message type")

// ServeWS upgrades HTTP requests to websockets and runs one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	started, err := h.service.Start(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	sessionID := started.SessionID

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		h.service.Abandon(ctx, sessionID)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer cancel()
	// no-op once the session has completed or exited
	defer h.service.Abandon(context.Background(), sessionID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("session", sessionID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push(outboundMessage[any]{Type: "started", Payload: started})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msgs, done := h.handle(ctx, sessionID, inbound)
		sent := true
		for _, msg := range msgs {
			if sent = push(msg); !sent {
				break
			}
		}
		if done || !sent {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle runs one inbound action and returns the replies; done reports that
// the session has ended.
func (h *WSHandler) handle(ctx context.Context, sessionID string, in inboundMessage) ([]outboundMessage[any], bool) {
	var (
		view domain.SessionView
		err  error
	)
	switch in.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil || payload.Index == nil {
			return []outboundMessage[any]{errorMessage(errors.New("invalid select payload"))}, false
		}
		view, err = h.service.Select(ctx, sessionID, *payload.Index)
	case "submit":
		view, err = h.service.Submit(ctx, sessionID)
		if err == nil && view.Answer != nil {
			return []outboundMessage[any]{{Type: "answer", Payload: answerPayload{Answer: *view.Answer, View: view}}}, false
		}
	case "next":
		view, err = h.service.Next(ctx, sessionID)
	case "previous":
		view, err = h.service.Previous(ctx, sessionID)
	case "finish":
		view, err = h.service.Finish(ctx, sessionID)
	case "exit":
		view, err = h.service.RequestExit(ctx, sessionID)
	case "confirmExit":
		view, err = h.service.ConfirmExit(ctx, sessionID)
	case "cancelExit":
		view, err = h.service.CancelExit(ctx, sessionID)
	case "retry":
		view, err = h.service.Retry(ctx, sessionID)
	default:
		err = errUnsupported
	}
	if err != nil {
		return []outboundMessage[any]{errorMessage(err)}, false
	}

	switch view.Status {
	case domain.StatusCompleted:
		// the view carries the results even when persisting them failed
		if view.Results == nil {
			return []outboundMessage[any]{errorMessage(errors.New("completed without results"))}, true
		}
		return []outboundMessage[any]{{Type: "completed", Payload: completedPayload{SessionID: sessionID, Results: *view.Results}}}, true
	case domain.StatusExited:
		return []outboundMessage[any]{{Type: "exited", Payload: exitedPayload{SessionID: sessionID}}}, true
	}
	// the new view reaches the client through the subscription
	return nil, false
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
}

func toErrorPayload(err error) errorPayload {
	var actionErr *domain.ActionError
	return errorPayload{Message: err.Error(), Retryable: errors.As(err, &actionErr)}
}
