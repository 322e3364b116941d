package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

// MessageRecord is the archived form of a chat message.
type MessageRecord struct {
	ID             string `gorm:"type:varchar(26);primaryKey"`
	ConversationID string `gorm:"type:varchar(128);not null;index:idx_assistant_message_conv_ts,priority:1"`

	Role           string `gorm:"type:varchar(16);not null"`
	Type           string `gorm:"type:varchar(16);not null"`
	Content        string `gorm:"type:text;not null"`
	Language       string `gorm:"type:varchar(16);not null"`
	EmotionalState string `gorm:"type:varchar(16)"`
	AgentID        string `gorm:"type:varchar(128)"`

	Metadata    datatypes.JSON
	Attachments datatypes.JSON

	Timestamp time.Time `gorm:"not null;index:idx_assistant_message_conv_ts,priority:2"`
	CreatedAt time.Time
}

func (MessageRecord) TableName() string { return "assistant_message" }

// SQLStore archives transcripts through gorm (Postgres in production,
// SQLite in tests). It keeps everything; there is no per-conversation cap.
type SQLStore struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *gorm.DB, baseLog *logger.Logger) *SQLStore {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &SQLStore{db: db, log: baseLog.With("repo", "MessageArchive"), now: time.Now}
}

func (s *SQLStore) Append(ctx context.Context, msg chat.ChatMessage) (chat.ChatMessage, error) {
	var out chat.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last MessageRecord
		err := tx.Where("conversation_id = ?", msg.ConversationID).
			Order("timestamp DESC").
			Order("id DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}
		out = prepare(msg, last.Timestamp, s.now())
		rec, err := toRecord(out)
		if err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("archive message: %w", err)
	}
	return out, nil
}

func (s *SQLStore) List(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error) {
	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []MessageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	out := make([]chat.ChatMessage, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		m, err := fromRecord(recs[i])
		if err != nil {
			s.log.Warn("skipping unreadable archived message", "message_id", recs[i].ID, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLStore) Delete(ctx context.Context, conversationID string) error {
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&MessageRecord{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

func toRecord(m chat.ChatMessage) (MessageRecord, error) {
	rec := MessageRecord{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Type:           string(m.Type),
		Content:        m.Content,
		Language:       string(m.Language),
		EmotionalState: string(m.EmotionalState),
		AgentID:        m.AgentID,
		Timestamp:      m.Timestamp,
	}
	if m.Metadata != nil {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return rec, err
		}
		rec.Metadata = datatypes.JSON(b)
	}
	if len(m.Attachments) > 0 {
		b, err := json.Marshal(m.Attachments)
		if err != nil {
			return rec, err
		}
		rec.Attachments = datatypes.JSON(b)
	}
	return rec, nil
}

func fromRecord(r MessageRecord) (chat.ChatMessage, error) {
	m := chat.ChatMessage{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           chat.Role(r.Role),
		Type:           chat.MessageType(r.Type),
		Content:        r.Content,
		Language:       chat.Language(r.Language),
		EmotionalState: chat.EmotionalState(r.EmotionalState),
		AgentID:        r.AgentID,
		Timestamp:      r.Timestamp.UTC(),
	}
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		var md chat.MessageMetadata
		if err := json.Unmarshal(r.Metadata, &md); err != nil {
			return m, err
		}
		m.Metadata = &md
	}
	if len(r.Attachments) > 0 && string(r.Attachments) != "null" {
		if err := json.Unmarshal(r.Attachments, &m.Attachments); err != nil {
			return m, err
		}
	}
	return m, nil
}
