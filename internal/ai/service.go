// Package ai validates requests before handing them to the AI backend.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

const MaxImageBytes = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Backend interface {
	ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error)
	ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error)
}

type Service struct {
	backend Backend
	logger  logging.Logger
}

func NewService(backend Backend, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{backend: backend, logger: logger}
}

// ParseOperation accepts "enhance" and "summarize"; empty means enhance.
func ParseOperation(raw string) (types.AIOperation, error) {
	switch types.AIOperation(strings.ToLower(strings.TrimSpace(raw))) {
	case "", types.AIOperationEnhance:
		return types.AIOperationEnhance, nil
	case types.AIOperationSummarize:
		return types.AIOperationSummarize, nil
	}
	return "", apperr.Validation("ai", "operation", fmt.Sprintf("unknown operation %q", raw))
}

func (s *Service) Enhance(ctx context.Context, text string, op types.AIOperation) (types.TextResult, error) {
	const opName = "enhance text"
	if strings.TrimSpace(text) == "" {
		return types.TextResult{}, apperr.Validation(opName, "text", "text is required")
	}
	op, err := ParseOperation(string(op))
	if err != nil {
		return types.TextResult{}, err
	}
	start := time.Now()
	result, err := s.backend.ProcessText(ctx, text, op)
	if err != nil {
		s.logger.Warn("ai_text_failed", logging.F("operation", op), logging.Err(err))
		return types.TextResult{}, apperr.WithOp(opName, err)
	}
	if result == nil {
		return types.TextResult{}, apperr.RemoteRejected(opName, 0, "empty AI response")
	}
	s.logger.Info("ai_text_processed",
		logging.F("operation", op),
		logging.F("chars", len(text)),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)
	return *result, nil
}

// ExtractText runs OCR on an image. The content type is sniffed from data.
func (s *Service) ExtractText(ctx context.Context, filename string, data []byte, op types.AIOperation) (types.ImageResult, error) {
	const opName = "extract text"
	upload, err := PrepareImage(filename, data)
	if err != nil {
		return types.ImageResult{}, err
	}
	op, err = ParseOperation(string(op))
	if err != nil {
		return types.ImageResult{}, err
	}
	result, err := s.backend.ProcessImage(ctx, upload, op)
	if err != nil {
		s.logger.Warn("ai_image_failed", logging.F("file", upload.Filename), logging.Err(err))
		return types.ImageResult{}, apperr.WithOp(opName, err)
	}
	if result == nil {
		return types.ImageResult{}, apperr.RemoteRejected(opName, 0, "empty OCR response")
	}
	s.logger.Info("ai_image_processed",
		logging.F("file", upload.Filename),
		logging.F("bytes", len(data)),
		logging.F("confidence", result.Confidence),
	)
	return *result, nil
}

// PrepareImage checks size and type of an image before upload.
func PrepareImage(filename string, data []byte) (types.ImageUpload, error) {
	const opName = "extract text"
	if len(data) == 0 {
		return types.ImageUpload{}, apperr.Validation(opName, "image", "image file is empty")
	}
	if len(data) > MaxImageBytes {
		return types.ImageUpload{}, apperr.Validation(opName, "image", "image is larger than 10 MB")
	}
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return types.ImageUpload{}, apperr.Validation(opName, "image",
			fmt.Sprintf("unsupported image type %s (use JPEG, PNG, GIF or WebP)", contentType))
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "image"
	}
	return types.ImageUpload{Filename: name, ContentType: contentType, Data: data}, nil
}
