package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"school-quiz-service/internal/app"
)

// WSHandler serves one attempt over a websocket: the student navigates,
// answers with live feedback and finishes without extra round trips.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	validate *validator.Validate
	log      zerolog.Logger
}

func NewWSHandler(service *app.AttemptService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
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

type navigatePayload struct {
	Index int `json:"index"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	submitAnswerRequest
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the attempt use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}
	if _, err := h.service.GetAttempt(r.Context(), attemptID); err != nil {
		writeError(w, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer, gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn().Err(err).Str("attemptId", attemptID).Msg("ws write error")
				// unblocks the read loop below
				conn.Close()
				return
			}
		}
	}()

	sendErr := func(err error) {
		_, body := errorBody(err)
		send <- outboundMessage[any]{Type: "error", Payload: body}
	}
	sendQuestion := func(index int) {
		view, err := h.service.NavigateTo(r.Context(), attemptID, index)
		if err != nil {
			sendErr(err)
			return
		}
		send <- outboundMessage[any]{Type: "question", Payload: view}
	}

	sendQuestion(0)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid navigate payload"}}
				continue
			}
			sendQuestion(payload.Index)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid answer payload"}}
				continue
			}
			if err := h.validate.Struct(payload.submitAnswerRequest); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: err.Error()}}
				continue
			}
			res, err := h.service.SubmitAnswer(r.Context(), attemptID, payload.QuestionID, payload.toSubmission())
			if err != nil {
				sendErr(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: res}
		case "finish":
			attempt, err := h.service.FinishAttempt(r.Context(), attemptID)
			if err != nil {
				sendErr(err)
				continue
			}
			send <- outboundMessage[any]{Type: "finished", Payload: attempt}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
