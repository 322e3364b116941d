package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/restoration-assistant/internal/assistant/contextstore"
	"github.com/yungbote/restoration-assistant/internal/assistant/engine"
	"github.com/yungbote/restoration-assistant/internal/assistant/media"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/apierr"
)

// Assistant is the part of the engine the HTTP layer needs.
type Assistant interface {
	ProcessMessage(ctx context.Context, req engine.Request) (engine.Result, error)
	Context(ctx context.Context, conversationID string) (*chat.ConversationContext, error)
	History(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error)
	Forget(ctx context.Context, conversationID string) error
}

type Uploader interface {
	Upload(ctx context.Context, conversationID, name, contentType string, r io.Reader) (chat.Attachment, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type ChatHandler struct {
	assistant Assistant
	uploader  Uploader
}

func NewChatHandler(a Assistant, u Uploader) *ChatHandler {
	return &ChatHandler{assistant: a, uploader: u}
}

type sendMessageReq struct {
	Message        string             `json:"message"`
	ConversationID string             `json:"conversation_id"`
	Language       chat.Language      `json:"language"`
	Attachments    []chat.Attachment  `json:"attachments"`
	Customer       *chat.CustomerInfo `json:"customer"`
}

// POST /v1/chat/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(c, err)
			return
		}
		respondErr(c, apierr.BadRequest("invalid_request", err))
		return
	}
	if err := validateAttachments(req.Attachments); err != nil {
		respondErr(c, err)
		return
	}
	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		convID = uuid.New().String()
	}
	res, err := h.assistant.ProcessMessage(c.Request.Context(), engine.Request{
		Message:        req.Message,
		ConversationID: convID,
		Language:       req.Language,
		Attachments:    req.Attachments,
		Customer:       req.Customer,
	})
	if err != nil {
		respondErr(c, mapEngineErr(err))
		return
	}
	RespondOK(c, res)
}

// GET /v1/conversations/:id/messages?limit=50
func (h *ChatHandler) ListMessages(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondErr(c, &apierr.Error{Status: http.StatusBadRequest, Code: "invalid_limit", Err: errors.New("limit must be a positive integer")})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := h.assistant.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"conversation_id": c.Param("id"), "messages": msgs})
}

// GET /v1/conversations/:id/context
func (h *ChatHandler) GetContext(c *gin.Context) {
	cc, err := h.assistant.Context(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, contextstore.ErrNotFound) {
			respondErr(c, apierr.NotFound("conversation_not_found", err))
			return
		}
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"conversation_id": c.Param("id"), "context": cc})
}

// DELETE /v1/conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.assistant.Forget(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/conversations/:id/attachments (multipart field "file")
func (h *ChatHandler) UploadAttachment(c *gin.Context) {
	if h.uploader == nil {
		RespondError(c, http.StatusNotImplemented, "media_disabled", errors.New("media uploads are not configured"))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(c, err)
			return
		}
		respondErr(c, &apierr.Error{Status: http.StatusBadRequest, Code: "missing_file", Err: err})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondErr(c, err)
		return
	}
	defer f.Close()

	att, err := h.uploader.Upload(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", err)
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": att})
}

func mapEngineErr(err error) error {
	if errors.Is(err, engine.ErrInvalidRequest) {
		return apierr.BadRequest("invalid_request", err)
	}
	return err
}

func validateAttachments(atts []chat.Attachment) error {
	for i, a := range atts {
		switch a.Kind {
		case chat.AttachmentImage, chat.AttachmentAudio, chat.AttachmentFile:
		default:
			return apierr.BadRequest("invalid_attachment", errors.New("attachments["+strconv.Itoa(i)+"].kind must be image, audio or file"))
		}
		if strings.TrimSpace(a.URI) == "" {
			return apierr.BadRequest("invalid_attachment", errors.New("attachments["+strconv.Itoa(i)+"].uri is required"))
		}
	}
	return nil
}

type HealthHandler struct {
	ready func(ctx context.Context) error
}

// NewHealthHandler takes an optional readiness probe (store pings).
func NewHealthHandler(ready func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			RespondError(c, http.StatusServiceUnavailable, "not_ready", err)
			return
		}
	}
	c.String(http.StatusOK, "ready")
}
