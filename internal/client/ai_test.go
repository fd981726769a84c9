package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

func TestProcessImageSendsMultipartForm(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/process-image" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if op := r.FormValue("operation"); op != "enhance" {
			t.Errorf("unexpected operation %q", op)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != string(png) || header.Filename != "board.png" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("unexpected part content type %q", ct)
		}
		_, _ = w.Write([]byte(`{"ocr_raw_text":"E = mc^2","ocr_confidence":0.91}`))
	})

	result, err := c.ProcessImage(context.Background(), types.ImageUpload{Filename: "board.png", Data: png}, "")
	if err != nil {
		t.Fatalf("ProcessImage error: %v", err)
	}
	if result.RecognizedText() != "E = mc^2" || result.Confidence != 0.91 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestProcessTextUsesAITimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		_, _ = w.Write([]byte(`{"processed_text":"better"}`))
	})
	c.http.Timeout = 10 * time.Millisecond
	c.aiTimeout = 2 * time.Second

	result, err := c.ProcessText(context.Background(), "good", types.AIOperationEnhance)
	if err != nil {
		t.Fatalf("ProcessText should not use the default timeout: %v", err)
	}
	if result.ProcessedText != "better" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestBreakerOpensAfterServerFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c.breaker = newBreaker(2, time.Minute, logging.Nop())

	for i := 0; i < 2; i++ {
		if _, err := c.ProcessText(context.Background(), "x", ""); !apperr.Is(err, apperr.KindRemoteRejected) {
			t.Fatalf("call %d: expected remote rejected, got %v", i, err)
		}
	}
	_, err := c.ProcessText(context.Background(), "x", "")
	if !errors.Is(err, apperr.ErrNetworkUnavailable) || !IsBreakerOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"empty text"}`))
	})
	c.breaker = newBreaker(1, time.Minute, logging.Nop())

	for i := 0; i < 3; i++ {
		_, err := c.ProcessText(context.Background(), "x", "")
		if apperr.Message(err) != "empty text" {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}
}
