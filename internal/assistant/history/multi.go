package history

import (
	"context"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

// Tee writes to a primary store and mirrors each stored message into an
// archive. Reads come from the primary. Archive failures are logged only.
type Tee struct {
	primary Store
	archive Store
	log     *logger.Logger
}

var _ Store = (*Tee)(nil)

func NewTee(primary, archive Store, log *logger.Logger) *Tee {
	if log == nil {
		log = logger.NewNop()
	}
	return &Tee{primary: primary, archive: archive, log: log.With("service", "HistoryTee")}
}

func (t *Tee) Append(ctx context.Context, msg chat.ChatMessage) (chat.ChatMessage, error) {
	stored, err := t.primary.Append(ctx, msg)
	if err != nil {
		return stored, err
	}
	if t.archive != nil {
		if _, err := t.archive.Append(ctx, stored); err != nil {
			t.log.Warn("archive append failed", "message_id", stored.ID, "error", err)
		}
	}
	return stored, nil
}

func (t *Tee) List(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error) {
	return t.primary.List(ctx, conversationID, limit)
}

// Delete only evicts the live transcript; the archive is the system of record.
func (t *Tee) Delete(ctx context.Context, conversationID string) error {
	return t.primary.Delete(ctx, conversationID)
}
