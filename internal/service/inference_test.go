package service

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrilens/leafsight/internal/config"
)

func TestClassifySendsBase64AndParsesPredictions(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/onion-model/3" {
			t.Errorf("path = %q, want /onion-model/3", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "secret" {
			t.Errorf("api_key = %q, want secret", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}

		body, _ := io.ReadAll(r.Body)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			t.Errorf("body is not base64: %v", err)
		}
		if string(decoded) != string(image) {
			t.Error("decoded body does not match the source image")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[{"class":"Rust","confidence":0.91,"x":100,"y":120,"width":40,"height":50}]}`))
	}))
	defer srv.Close()

	svc := NewDetectionService(&config.DetectionConfig{
		BaseURL: srv.URL,
		Model:   "onion-model",
		Version: "3",
		APIKey:  "secret",
		Timeout: 5 * time.Second,
	})

	preds, err := svc.Classify(context.Background(), image)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("prediction count = %d, want 1", len(preds))
	}
	if preds[0].Class != "Rust" || preds[0].Confidence != 0.91 {
		t.Errorf("prediction = %+v", preds[0])
	}
}

func TestClassifyEmptyPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	svc := NewDetectionService(&config.DetectionConfig{
		BaseURL: srv.URL, Model: "m", Version: "1", Timeout: 5 * time.Second,
	})

	preds, err := svc.Classify(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("prediction count = %d, want 0", len(preds))
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	svc := NewDetectionService(&config.DetectionConfig{
		BaseURL: srv.URL, Model: "m", Version: "1", Timeout: 5 * time.Second,
	})

	if _, err := svc.Classify(context.Background(), []byte("img")); err == nil {
		t.Error("expected error for HTTP 403, got nil")
	}
}
