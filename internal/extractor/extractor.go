package extractor

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/facemark-labs/facemark/internal/domain"
)

// Extractor produces zero or more face detections from an encoded image.
//
// The returned slice is freshly allocated per call: finite, restartable by
// calling Extract again, and safe for the caller to retain. Undecodable or
// faceless input yields an empty slice with a nil error; an error is returned
// only for collaborator faults (e.g. a remote extraction service being down),
// never for bad probe images.
type Extractor interface {
	Extract(ctx context.Context, img []byte) ([]domain.Detection, error)
}

// decodeImage decodes JPEG, PNG or BMP bytes. Anything else fails.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	return img, nil
}
