package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

// EmailConfig configures the SendGrid mail-send notifier.
type EmailConfig struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	To        []string

	Timeout    time.Duration
	MaxRetries int
}

// EmailNotifier mails each ticket to the on-call address list through the
// SendGrid v3 mail-send API.
type EmailNotifier struct {
	log        *logger.Logger
	cfg        EmailConfig
	httpClient *http.Client
}

func NewEmailNotifier(log *logger.Logger, cfg EmailConfig) (*EmailNotifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("missing escalation from address")
	}
	if len(cfg.To) == 0 {
		return nil, fmt.Errorf("missing escalation recipients")
	}
	if log == nil {
		log = logger.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &EmailNotifier{
		log:        log.With("service", "EscalationEmail"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPersonalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailSendRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             emailAddress          `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
	Categories       []string              `json:"categories,omitempty"`
	CustomArgs       map[string]string     `json:"custom_args,omitempty"`
}

// SendError is a non-2xx answer from the mail API.
type SendError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *SendError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

func (n *EmailNotifier) Notify(ctx context.Context, t Ticket) error {
	to := make([]emailAddress, 0, len(n.cfg.To))
	for _, addr := range n.cfg.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, emailAddress{Email: addr})
		}
	}
	body := mailSendRequest{
		Personalizations: []mailPersonalization{{To: to}},
		From:             emailAddress{Email: n.cfg.FromEmail, Name: n.cfg.FromName},
		Subject:          ticketSubject(t),
		Content:          []mailContent{{Type: "text/plain", Value: ticketBody(t)}},
		Categories:       []string{"escalation"},
		CustomArgs:       map[string]string{"conversation_id": t.ConversationID},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	backoff := 250 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := n.send(ctx, raw)
		if err == nil {
			return nil
		}
		if attempt >= n.cfg.MaxRetries || !retryable(err) {
			return err
		}
		wait := backoff
		if se, ok := err.(*SendError); ok && se.retryAfter > 0 {
			wait = min(se.retryAfter, 10*time.Second)
		}
		n.log.Warn("escalation email retrying", "attempt", attempt+1, "sleep", wait.String(), "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (n *EmailNotifier) send(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	se := &SendError{StatusCode: resp.StatusCode, Body: string(b)}
	if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
		se.retryAfter = time.Duration(secs) * time.Second
	}
	return se
}

func retryable(err error) bool {
	se, ok := err.(*SendError)
	if !ok {
		// transport failure
		return true
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}

func ticketSubject(t Ticket) string {
	prefix := "Escalation"
	if t.IsEmergency {
		prefix = "EMERGENCY"
	}
	return fmt.Sprintf("[%s] %s conversation %s (%s urgency)", prefix, t.ServiceType, t.ConversationID, t.Urgency.Level)
}

func ticketBody(t Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation: %s\n", t.ConversationID)
	fmt.Fprintf(&b, "Message id: %s\n", t.MessageID)
	fmt.Fprintf(&b, "Service: %s\n", t.ServiceType)
	fmt.Fprintf(&b, "Intent: %s\n", t.Intent)
	fmt.Fprintf(&b, "Urgency: %s (%s)\n", t.Urgency.Level, t.Urgency.Reason)
	fmt.Fprintf(&b, "Emotion: %s\n", t.Sentiment.Emotion)
	if c := t.Customer; c != nil {
		fmt.Fprintf(&b, "Customer: %s %s %s\n", c.Name, c.Phone, c.Email)
	}
	if l := t.Location; l != nil {
		fmt.Fprintf(&b, "Location: %s %s %s\n", l.Address, l.Suburb, l.Postcode)
	}
	fmt.Fprintf(&b, "\nCustomer said:\n%s\n", t.Message)
	return b.String()
}
