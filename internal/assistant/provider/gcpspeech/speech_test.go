package gcpspeech

import (
	"context"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

func result(text string) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
	}
}

func TestTranscribeJoinsResults(t *testing.T) {
	tr := newTranscriber(logger.NewNop(), func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		if req.GetConfig().GetLanguageCode() != "es-ES" {
			t.Fatalf("language=%s", req.GetConfig().GetLanguageCode())
		}
		if req.GetConfig().GetEncoding() != speechpb.RecognitionConfig_OGG_OPUS {
			t.Fatalf("encoding=%s", req.GetConfig().GetEncoding())
		}
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{result("hay agua"), result(" en la cocina ")}}, nil
	})
	got, err := tr.Transcribe(context.Background(), chat.Attachment{Kind: chat.AttachmentAudio, URI: "gs://b/note.ogg"}, "es")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hay agua en la cocina" {
		t.Fatalf("got=%q", got)
	}
}

func TestTranscribeRetriesUnavailable(t *testing.T) {
	calls := 0
	tr := newTranscriber(logger.NewNop(), func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		calls++
		if calls == 1 {
			return nil, status.Error(codes.Unavailable, "try again")
		}
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{result("ok")}}, nil
	})
	tr.backoff = time.Millisecond
	got, err := tr.Transcribe(context.Background(), chat.Attachment{URI: "gs://b/a.wav"}, "en")
	if err != nil || got != "ok" || calls != 2 {
		t.Fatalf("got=%q err=%v calls=%d", got, err, calls)
	}
}

func TestTranscribeDoesNotRetryInvalidArgument(t *testing.T) {
	calls := 0
	tr := newTranscriber(logger.NewNop(), func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		calls++
		return nil, status.Error(codes.InvalidArgument, "bad audio")
	})
	if _, err := tr.Transcribe(context.Background(), chat.Attachment{URI: "gs://b/a.wav"}, "en"); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestTranscribeRejectsNonGCS(t *testing.T) {
	tr := newTranscriber(logger.NewNop(), nil)
	if _, err := tr.Transcribe(context.Background(), chat.Attachment{URI: "https://x/a.wav"}, "en"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLanguageCodeFallback(t *testing.T) {
	if languageCode("fr") != "en-AU" || languageCode("vi-VN") != "vi-VN" {
		t.Fatalf("unexpected language codes")
	}
}
