// Package media stores customer uploads (damage photos, voice notes) in an
// object bucket and hands back attachments the pipeline can analyze.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/gcp"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

var ErrTooLarge = errors.New("upload exceeds size limit")

// objectWriter opens a writer for bucket/key. The GCS client is adapted to it
// so tests can capture writes.
type objectWriter func(ctx context.Context, bucket, key, contentType string) io.WriteCloser

type Uploader struct {
	log      *logger.Logger
	bucket   string
	maxBytes int64
	write    objectWriter
	close    func() error
}

type Options struct {
	Bucket       string
	Mode         gcp.ObjectStorageMode
	EmulatorHost string
	MaxBytes     int64
}

func New(ctx context.Context, log *logger.Logger, opts Options) (*Uploader, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("media bucket required")
	}
	client, err := gcp.NewStorageClient(ctx, opts.Mode, opts.EmulatorHost)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	u := newUploader(log, opts.Bucket, opts.MaxBytes, func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = contentType
		return w
	})
	u.close = client.Close
	u.log.Info("Media storage initialized", "bucket", opts.Bucket, "mode", string(opts.Mode))
	return u, nil
}

func newUploader(log *logger.Logger, bucket string, maxBytes int64, write objectWriter) *Uploader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Uploader{
		log:      log.With("service", "MediaUploader"),
		bucket:   bucket,
		maxBytes: maxBytes,
		write:    write,
	}
}

func (u *Uploader) Close() error {
	if u == nil || u.close == nil {
		return nil
	}
	return u.close()
}

// Upload copies r into the bucket under the conversation's prefix. An empty
// contentType is sniffed from the first bytes.
func (u *Uploader) Upload(ctx context.Context, conversationID, name, contentType string, r io.Reader) (chat.Attachment, error) {
	if conversationID == "" {
		return chat.Attachment{}, fmt.Errorf("conversation id required")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return chat.Attachment{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType = normalizeContentType(contentType, head)

	id := uuid.NewString()
	key := path.Join("conversations", safeSegment(conversationID), id+"-"+safeName(name))

	body := io.MultiReader(bytes.NewReader(head), r)
	if u.maxBytes > 0 {
		body = io.LimitReader(body, u.maxBytes+1)
	}

	// Cancelling the writer's context before Close abandons the object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := u.write(wctx, u.bucket, key, contentType)
	written, err := io.Copy(w, body)
	if err != nil {
		cancel()
		_ = w.Close()
		return chat.Attachment{}, fmt.Errorf("upload %s: %w", key, err)
	}
	if u.maxBytes > 0 && written > u.maxBytes {
		cancel()
		_ = w.Close()
		return chat.Attachment{}, ErrTooLarge
	}
	if err := w.Close(); err != nil {
		return chat.Attachment{}, fmt.Errorf("finalize %s: %w", key, err)
	}

	att := chat.Attachment{
		ID:       id,
		Kind:     kindFor(contentType),
		URI:      "gs://" + u.bucket + "/" + key,
		MimeType: contentType,
		Name:     name,
		Size:     written,
	}
	u.log.Debug("media uploaded", "conversation_id", conversationID, "kind", string(att.Kind), "size", written)
	return att, nil
}

func normalizeContentType(ct string, head []byte) string {
	ct = strings.TrimSpace(ct)
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(head)
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return "application/octet-stream"
}

func kindFor(contentType string) chat.AttachmentKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return chat.AttachmentImage
	case strings.HasPrefix(contentType, "audio/"):
		return chat.AttachmentAudio
	default:
		return chat.AttachmentFile
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	if len(name) > 80 {
		name = name[len(name)-80:]
	}
	return name
}

func safeSegment(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" {
		return "_"
	}
	return s
}
