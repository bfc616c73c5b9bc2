package extractor

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/facemark-labs/facemark/internal/domain"
)

// RemoteExtractor delegates detection and embedding to an external embedding
// service (a DeepFace-compatible HTTP API). Service unavailability is a
// collaborator fault and surfaces as an error; a response with no faces, or a
// rejection of the image itself, yields an empty slice.
type RemoteExtractor struct {
	client *remoteClient
}

func NewRemote(config RemoteConfig) *RemoteExtractor {
	if config.BaseURL == "" {
		config.BaseURL = DefaultRemoteConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRemoteConfig().Timeout
	}
	if config.Model == "" {
		config.Model = DefaultRemoteConfig().Model
	}
	if config.Detector == "" {
		config.Detector = DefaultRemoteConfig().Detector
	}
	return &RemoteExtractor{client: newRemoteClient(config)}
}

func (e *RemoteExtractor) Extract(ctx context.Context, img []byte) ([]domain.Detection, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(img)

	resp, err := e.client.Represent(ctx, imageBase64)
	if err != nil {
		if isClientError(err) {
			// The service decoded the request but rejected the image.
			return []domain.Detection{}, nil
		}
		return nil, fmt.Errorf("remote extract: %w", err)
	}

	detections := make([]domain.Detection, 0, len(resp.Results))
	for _, result := range resp.Results {
		if len(result.Embedding) == 0 {
			continue
		}
		area := result.FacialArea
		detections = append(detections, domain.Detection{
			Region: domain.FaceRegion{
				Top:    area.Y,
				Right:  area.X + area.W,
				Bottom: area.Y + area.H,
				Left:   area.X,
			},
			Descriptor: domain.FaceDescriptor(result.Embedding),
		})
	}

	return detections, nil
}

var _ Extractor = (*RemoteExtractor)(nil)
