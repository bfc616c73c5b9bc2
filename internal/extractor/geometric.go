package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/facemark-labs/facemark/internal/domain"
)

// GeometricExtractor localizes faces with a trained geometric detector and
// produces dense 128-dimension descriptors from an embedding model (dlib via
// go-face). Model files (shape predictor + resnet descriptor net) must be
// present in the configured directory.
type GeometricExtractor struct {
	rec *face.Recognizer

	// dlib's recognizer is not safe for concurrent use.
	mu sync.Mutex
}

// NewGeometric loads the detection and embedding models from modelsDir.
func NewGeometric(modelsDir string) (*GeometricExtractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", modelsDir, err)
	}
	return &GeometricExtractor{rec: rec}, nil
}

func (e *GeometricExtractor) Extract(ctx context.Context, img []byte) ([]domain.Detection, error) {
	jpegData, err := toJPEG(img)
	if err != nil {
		// Undecodable input is "no face", not a fault.
		return []domain.Detection{}, nil
	}

	e.mu.Lock()
	faces, err := e.rec.Recognize(jpegData)
	e.mu.Unlock()
	if err != nil {
		return []domain.Detection{}, nil
	}

	detections := make([]domain.Detection, 0, len(faces))
	for _, f := range faces {
		descriptor := make(domain.FaceDescriptor, len(f.Descriptor))
		for i, v := range f.Descriptor {
			descriptor[i] = float64(v)
		}
		detections = append(detections, domain.Detection{
			Region: domain.FaceRegion{
				Top:    f.Rectangle.Min.Y,
				Right:  f.Rectangle.Max.X,
				Bottom: f.Rectangle.Max.Y,
				Left:   f.Rectangle.Min.X,
			},
			Descriptor: descriptor,
		})
	}

	return detections, nil
}

// Close releases the native recognizer resources.
func (e *GeometricExtractor) Close() {
	e.rec.Close()
}

// toJPEG returns the input unchanged when it already is a JPEG and
// re-encodes PNG/BMP input otherwise, since the embedding model only
// consumes JPEG data.
func toJPEG(data []byte) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0xff && data[1] == 0xd8 {
		return data, nil
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("re-encode to jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var _ Extractor = (*GeometricExtractor)(nil)
