package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/restoration-assistant/internal/assistant/engine"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type wsIncoming struct {
	Text        string            `json:"text"`
	Language    chat.Language     `json:"language"`
	Attachments []chat.Attachment `json:"attachments"`
}

type wsOutgoing struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Text           string         `json:"text,omitempty"`
	Result         *engine.Result `json:"result,omitempty"`
}

// WSHandler serves the live chat socket. Frames on one socket are processed
// in order.
type WSHandler struct {
	log            *logger.Logger
	assistant      Assistant
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	readLimit      int64
}

func NewWSHandler(log *logger.Logger, a Assistant, allowedOrigins []string, readLimit int64) *WSHandler {
	if log == nil {
		log = logger.NewNop()
	}
	origins := make(map[string]bool)
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h := &WSHandler{
		log:            log.With("service", "ChatSocket"),
		assistant:      a,
		allowedOrigins: origins,
		readLimit:      readLimit,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return h.allowedOrigins[origin]
}

// GET /v1/chat/ws?conversation_id=...
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	convID := strings.TrimSpace(c.Query("conversation_id"))
	if convID == "" {
		convID = uuid.New().String()
	}
	if err := conn.WriteJSON(wsOutgoing{Type: "connected", ConversationID: convID}); err != nil {
		return
	}

	// The request context is cancelled when the handler returns.
	ctx := context.WithoutCancel(c.Request.Context())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var in wsIncoming
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = conn.WriteJSON(wsOutgoing{Type: "error", Text: "Invalid message format. Send JSON with a 'text' field."})
			continue
		}
		if err := validateAttachments(in.Attachments); err != nil {
			_ = conn.WriteJSON(wsOutgoing{Type: "error", Text: err.Error()})
			continue
		}

		res, err := h.assistant.ProcessMessage(ctx, engine.Request{
			Message:        in.Text,
			ConversationID: convID,
			Language:       in.Language,
			Attachments:    in.Attachments,
		})
		if err != nil {
			h.log.Error("process websocket message", "error", err)
			_ = conn.WriteJSON(wsOutgoing{Type: "error", Text: "Sorry, something went wrong. Please call us."})
			continue
		}
		if err := conn.WriteJSON(wsOutgoing{Type: "result", ConversationID: convID, Result: &res}); err != nil {
			h.log.Warn("websocket write failed", "error", err)
			return
		}
	}
}
