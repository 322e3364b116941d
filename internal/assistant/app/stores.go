package app

import (
	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/contextstore"
	"github.com/yungbote/restoration-assistant/internal/assistant/escalation"
	"github.com/yungbote/restoration-assistant/internal/assistant/history"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type Stores struct {
	Contexts contextstore.Store
	History  history.Store
}

func wireStores(log *logger.Logger, cfg *config.Config, clients *Clients) Stores {
	log.Info("Wiring stores...", "backend", cfg.Store.Backend)
	var s Stores
	switch {
	case cfg.Store.Backend == "redis" && clients.Redis != nil:
		s.Contexts = contextstore.NewRedisStore(clients.Redis, cfg.Store.KeyPrefix, cfg.Store.IdleTTL.Duration)
		s.History = history.NewRedisStore(clients.Redis, cfg.Store.KeyPrefix, cfg.Store.IdleTTL.Duration, cfg.Store.HistoryLimit)
	default:
		s.Contexts = contextstore.NewMemoryStore(contextstore.MemoryOptions{
			MaxConversations: cfg.Store.MaxConversations,
			IdleTTL:          cfg.Store.IdleTTL.Duration,
			OnEvict: func(id string) {
				log.Debug("conversation context evicted", "conversation_id", id)
			},
		})
		s.History = history.NewMemoryStore(history.MemoryOptions{
			MaxConversations: cfg.Store.MaxConversations,
			PerConversation:  cfg.Store.HistoryLimit,
			IdleTTL:          cfg.Store.IdleTTL.Duration,
		})
	}
	if clients.Archive != nil {
		s.History = history.NewTee(s.History, history.NewSQLStore(clients.Archive, log), log)
	}
	return s
}

func wireNotifier(log *logger.Logger, cfg *config.Config, clients *Clients) (escalation.Notifier, error) {
	notifiers := escalation.Multi{escalation.NewLogNotifier(log)}
	if cfg.Escalation.Notifier == "redis" && clients.Redis != nil {
		pub, err := escalation.NewRedisPublisher(log, clients.Redis, cfg.Escalation.Channel)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, pub)
	}
	if email := cfg.Escalation.Email; email.Enabled() {
		en, err := escalation.NewEmailNotifier(log, escalation.EmailConfig{
			APIKey:     email.APIKey,
			BaseURL:    email.BaseURL,
			FromEmail:  email.FromEmail,
			FromName:   email.FromName,
			To:         email.To,
			MaxRetries: email.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, en)
	}
	return notifiers, nil
}
