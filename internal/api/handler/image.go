package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/facemark-labs/facemark/internal/domain"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
}

// extractAndValidateImage extracts and validates the image from the form
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	if file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}
