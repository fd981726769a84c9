package client

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

func newBreaker(failures uint32, timeout time.Duration, logger logging.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change",
				logging.F("breaker", name),
				logging.F("from", from.String()),
				logging.F("to", to.String()),
			)
		},
		// Only transport failures and server errors trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if apperr.Is(err, apperr.KindNetworkUnavailable) {
				return false
			}
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				return appErr.Status < 500
			}
			return false
		},
	})
}

func (c *Client) ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error) {
	if op == "" {
		op = types.AIOperationEnhance
	}
	req := processTextRequest{Text: text, Operation: string(op)}
	var resp types.TextResult
	err := c.guarded("post /api/ai/process", func() error {
		return c.doJSONWithTimeout(ctx, http.MethodPost, "/api/ai/process", req, true, &resp, c.aiTimeout)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error) {
	if op == "" {
		op = types.AIOperationEnhance
	}
	body, contentType, err := encodeImageForm(upload, op)
	if err != nil {
		return nil, err
	}
	var resp types.ImageResult
	err = c.guarded("post /api/ai/process-image", func() error {
		req, err := c.newRequest(ctx, http.MethodPost, "/api/ai/process-image", bytes.NewReader(body), true)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		client := c.http
		if c.aiTimeout > 0 {
			client = &http.Client{Timeout: c.aiTimeout, Transport: c.http.Transport}
		}
		return c.do(req, &resp, client)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) guarded(op string, call func() error) error {
	if c.breaker == nil {
		return call()
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, call()
	})
	if IsBreakerOpen(err) {
		return apperr.NetworkUnavailable(op, err)
	}
	return err
}

func encodeImageForm(upload types.ImageUpload, op types.AIOperation) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	filename := strings.TrimSpace(upload.Filename)
	if filename == "" {
		filename = "image"
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(upload.Data)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="`+escapeQuotes(filename)+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("operation", string(op)); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
