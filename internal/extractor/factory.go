package extractor

import (
	"fmt"

	"github.com/facemark-labs/facemark/internal/config"
)

// Kind identifies a feature-extraction capability.
type Kind string

const (
	// KindGeometric localizes faces with the trained dlib pipeline and
	// produces dense embedding descriptors. Requires model files on disk.
	KindGeometric Kind = "geometric"
	// KindFallback is the pure-Go pixel-statistics extractor for
	// environments without the native models.
	KindFallback Kind = "fallback"
	// KindRemote delegates extraction to an external embedding service.
	KindRemote Kind = "remote"
)

// New builds the configured extractor variant. Downstream components receive
// the Extractor interface only; swapping variants never changes their
// contracts.
func New(cfg *config.Config) (Extractor, error) {
	switch Kind(cfg.ExtractorKind) {
	case KindGeometric:
		ext, err := NewGeometric(cfg.FaceModelsDir)
		if err != nil {
			return nil, fmt.Errorf("create geometric extractor: %w", err)
		}
		return ext, nil

	case KindRemote:
		remoteCfg := DefaultRemoteConfig()
		remoteCfg.BaseURL = cfg.RemoteExtractorURL
		return NewRemote(remoteCfg), nil

	case KindFallback, "":
		return NewFallback(), nil

	default:
		return nil, fmt.Errorf("unknown extractor kind: %s (supported: %s, %s, %s)",
			cfg.ExtractorKind, KindGeometric, KindFallback, KindRemote)
	}
}
