// Package gcpvision assesses damage photos with Cloud Vision label detection.
package gcpvision

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/restoration-assistant/internal/assistant/provider"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/gcp"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

// At most this many images are sent per message.
const maxImages = 5

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

type Analyzer struct {
	log        *logger.Logger
	annotate   annotateFunc
	maxResults int32
	close      func() error
}

var _ provider.ImageAnalyzer = (*Analyzer)(nil)

func New(ctx context.Context, log *logger.Logger, maxResults int) (*Analyzer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := vision.NewImageAnnotatorClient(ctx, gcp.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	a := newAnalyzer(log, maxResults, func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return c.BatchAnnotateImages(ctx, req)
	})
	a.close = c.Close
	return a, nil
}

func newAnalyzer(log *logger.Logger, maxResults int, fn annotateFunc) *Analyzer {
	if maxResults <= 0 {
		maxResults = 15
	}
	return &Analyzer{
		log:        log.With("service", "gcpvision.Analyzer"),
		annotate:   fn,
		maxResults: int32(maxResults),
		close:      func() error { return nil },
	}
}

func (a *Analyzer) Close() error {
	if a == nil || a.close == nil {
		return nil
	}
	return a.close()
}

// AnalyzeImages labels every image attachment and folds the labels into a
// single assessment. Non-image attachments are ignored.
func (a *Analyzer) AnalyzeImages(ctx context.Context, attachments []chat.Attachment) (*chat.ImageAnalysis, error) {
	reqs := make([]*visionpb.AnnotateImageRequest, 0, maxImages)
	for _, att := range attachments {
		if !att.IsImage() || strings.TrimSpace(att.URI) == "" {
			continue
		}
		if len(reqs) == maxImages {
			break
		}
		reqs = append(reqs, &visionpb.AnnotateImageRequest{
			Image:    &visionpb.Image{Source: imageSource(att.URI)},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: a.maxResults}},
		})
	}
	if len(reqs) == 0 {
		return nil, nil
	}

	resp, err := a.annotate(ctx, &visionpb.BatchAnnotateImagesRequest{Requests: reqs})
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil {
		return nil, provider.Malformed("vision returned no response")
	}

	var labels []Label
	for i, r := range resp.GetResponses() {
		if r == nil {
			continue
		}
		if r.GetError() != nil && r.GetError().GetMessage() != "" {
			a.log.Warn("vision image annotate error", "image_index", i, "error", r.GetError().GetMessage())
			continue
		}
		for _, l := range r.GetLabelAnnotations() {
			labels = append(labels, Label{Description: l.GetDescription(), Score: float64(l.GetScore())})
		}
	}
	if len(labels) == 0 {
		return nil, nil
	}
	return Assess(labels, len(reqs)), nil
}

func imageSource(uri string) *visionpb.ImageSource {
	if strings.HasPrefix(uri, "gs://") {
		return &visionpb.ImageSource{GcsImageUri: uri}
	}
	return &visionpb.ImageSource{ImageUri: uri}
}
