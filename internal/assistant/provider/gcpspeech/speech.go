// Package gcpspeech transcribes short customer voice notes with Cloud Speech.
package gcpspeech

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/gcp"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

type Transcriber struct {
	log        *logger.Logger
	recognize  recognizeFunc
	maxRetries int
	backoff    time.Duration
	close      func() error
}

var _ provider.Transcriber = (*Transcriber)(nil)

func New(ctx context.Context, log *logger.Logger) (*Transcriber, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(ctx, gcp.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	t := newTranscriber(log, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	})
	t.close = c.Close
	return t, nil
}

func newTranscriber(log *logger.Logger, fn recognizeFunc) *Transcriber {
	return &Transcriber{
		log:        log.With("service", "gcpspeech.Transcriber"),
		recognize:  fn,
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
		close:      func() error { return nil },
	}
}

func (t *Transcriber) Close() error {
	if t == nil || t.close == nil {
		return nil
	}
	return t.close()
}

// Transcribe recognizes a gs:// voice note. Synchronous recognition only
// accepts short clips, which is what customers send from the chat widget.
func (t *Transcriber) Transcribe(ctx context.Context, att chat.Attachment, lang chat.Language) (string, error) {
	if !strings.HasPrefix(att.URI, "gs://") {
		return "", fmt.Errorf("voice note must be a gs:// object, got %q", att.URI)
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               languageCode(lang),
			Encoding:                   inferEncoding(att.MimeType, att.URI),
			EnableAutomaticPunctuation: true,
			Model:                      "latest_short",
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: att.URI}},
	}

	resp, err := t.retry(ctx, func() (*speechpb.RecognizeResponse, error) {
		return t.recognize(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if s := strings.TrimSpace(alts[0].GetTranscript()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func (t *Transcriber) retry(ctx context.Context, fn func() (*speechpb.RecognizeResponse, error)) (*speechpb.RecognizeResponse, error) {
	backoff := t.backoff
	var last error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == t.maxRetries {
			break
		}
		t.log.Debug("speech retry", "attempt", attempt+1, "code", code.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, last
}

var languageCodes = map[chat.Language]string{
	chat.LanguageEnglish:    "en-AU",
	chat.LanguageSpanish:    "es-ES",
	chat.LanguageChinese:    "cmn-Hans-CN",
	chat.LanguageVietnamese: "vi-VN",
	chat.LanguageArabic:     "ar-AE",
}

func languageCode(lang chat.Language) string {
	if code, ok := languageCodes[chat.NormalizeLanguage(lang)]; ok {
		return code
	}
	return "en-AU"
}

func inferEncoding(mimeType string, uri string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(uri))

	switch {
	case strings.Contains(m, "wav") || ext == ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac") || ext == ".flac":
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || strings.Contains(m, "mpeg") || ext == ".mp3":
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "webm") || ext == ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(m, "ogg") || ext == ".ogg" || ext == ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
