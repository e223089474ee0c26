package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/config"
)

// newChatServer serves an OpenAI-compatible chat completions endpoint
// whose reply is chosen by respond, keyed on the user message content.
func newChatServer(t *testing.T, respond func(user string) (string, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected message layout: %+v", req.Messages)
		}

		content, status := respond(req.Messages[1].Content)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func newKnowledgeService(srvURL string, store *cache.Store, catalog *CatalogService, images *ImageMapService) *KnowledgeService {
	return NewKnowledgeService(&config.LLMConfig{
		BaseURL:     srvURL,
		Model:       "llama3-70b-8192",
		APIKey:      "test-key",
		Temperature: 0.3,
		Timeout:     5 * time.Second,
	}, "https://plantvillage.psu.edu/topics/onion/infos", catalog, images, store)
}

func TestDiseaseTextSuccess(t *testing.T) {
	srv := newChatServer(t, func(user string) (string, int) {
		return `{"description":"A fungal disease.","prescription":"Apply fungicide.","mitigation":"Rotate crops.","source":"https://example.com/kb"}`, http.StatusOK
	})
	defer srv.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	svc := newKnowledgeService(srv.URL, store, nil, nil)
	rec := svc.DiseaseText(context.Background(), "Purple Blotch")

	if rec.Failed {
		t.Fatal("record unexpectedly degraded")
	}
	if rec.DiseaseType != "Purple Blotch" {
		t.Errorf("DiseaseType = %q", rec.DiseaseType)
	}
	if rec.Description != "A fungal disease." {
		t.Errorf("Description = %q", rec.Description)
	}
	if rec.Source != "https://example.com/kb" {
		t.Errorf("Source = %q", rec.Source)
	}
}

func TestDiseaseTextDegradesAndSkipsCache(t *testing.T) {
	calls := 0
	srv := newChatServer(t, func(user string) (string, int) {
		calls++
		if calls == 1 {
			return "", http.StatusInternalServerError
		}
		return `{"description":"Recovered.","prescription":"P.","mitigation":"M.","source":""}`, http.StatusOK
	})
	defer srv.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	svc := newKnowledgeService(srv.URL, store, nil, nil)

	rec := svc.DiseaseText(context.Background(), "Rust")
	if !rec.Failed {
		t.Fatal("expected degraded record on upstream failure")
	}
	if rec.Description != degradedDescription || rec.Prescription != degradedPrescription || rec.Mitigation != degradedMitigation {
		t.Errorf("degraded texts wrong: %+v", rec)
	}
	if rec.Source == "" {
		t.Error("degraded record should carry the knowledge-base source URL")
	}

	// A degraded record must not stick: the retry reaches upstream again
	// and succeeds.
	rec = svc.DiseaseText(context.Background(), "Rust")
	if rec.Failed {
		t.Fatal("retry still degraded, degraded record was cached")
	}
	if rec.Description != "Recovered." {
		t.Errorf("Description = %q, want %q", rec.Description, "Recovered.")
	}
	// Empty source falls back to the configured knowledge-base URL.
	if rec.Source == "" {
		t.Error("empty source should fall back to the configured URL")
	}
}

func TestDiseaseTextMalformedJSONDegrades(t *testing.T) {
	srv := newChatServer(t, func(user string) (string, int) {
		return "Sorry, I cannot answer in JSON today.", http.StatusOK
	})
	defer srv.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	svc := newKnowledgeService(srv.URL, store, nil, nil)
	rec := svc.DiseaseText(context.Background(), "Downy Mildew")
	if !rec.Failed {
		t.Error("expected degraded record on malformed JSON")
	}
}

func TestSuggestPropagatesErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		status  int
	}{
		{name: "upstream error", content: "", status: http.StatusServiceUnavailable},
		{name: "malformed json", content: "not json", status: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newChatServer(t, func(user string) (string, int) {
				return tc.content, tc.status
			})
			defer srv.Close()

			store := cache.New(time.Minute)
			defer store.Close()

			svc := newKnowledgeService(srv.URL, store, nil, nil)
			if _, err := svc.Suggest(context.Background(), "Rust", 91, "https://cdn.example.com/a.jpg"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSuggestSuccessAndCache(t *testing.T) {
	calls := 0
	srv := newChatServer(t, func(user string) (string, int) {
		calls++
		return `{"summary":"Rust detected.","prescription":"Spray.","mitigation":"Avoid overhead watering."}`, http.StatusOK
	})
	defer srv.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	svc := newKnowledgeService(srv.URL, store, nil, nil)

	sugg, err := svc.Suggest(context.Background(), "Rust", 91, "https://cdn.example.com/a.jpg")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if sugg.Summary != "Rust detected." {
		t.Errorf("Summary = %q", sugg.Summary)
	}

	// Same label and confidence: served from cache.
	if _, err := svc.Suggest(context.Background(), "Rust", 91, "https://cdn.example.com/b.jpg"); err != nil {
		t.Fatalf("cached Suggest failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}

	// Different confidence is a different cache entry.
	if _, err := svc.Suggest(context.Background(), "Rust", 40, "https://cdn.example.com/a.jpg"); err != nil {
		t.Fatalf("Suggest with new confidence failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("upstream called %d times, want 2", calls)
	}
}

func TestDiseaseInfoIsolatesDegradedLabels(t *testing.T) {
	taxonomy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stats":{"classes":[{"name":"Purple Blotch"},{"name":"Rust"},{"name":"Healthy"}]}}`))
	}))
	defer taxonomy.Close()

	gallery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(galleryPage))
	}))
	defer gallery.Close()

	chat := newChatServer(t, func(user string) (string, int) {
		if strings.Contains(user, "Rust") {
			return "", http.StatusInternalServerError
		}
		return `{"description":"About it.","prescription":"P.","mitigation":"M.","source":"https://example.com"}`, http.StatusOK
	})
	defer chat.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	catalog := NewCatalogService(&config.TaxonomyConfig{ListURL: taxonomy.URL, Timeout: 5 * time.Second}, store)
	images := NewImageMapService(&config.GalleryConfig{
		SourceURL: gallery.URL,
		ImageHost: "plantvillage-production-new",
		Timeout:   5 * time.Second,
	}, store)

	svc := newKnowledgeService(chat.URL, store, catalog, images)

	infos, err := svc.DiseaseInfo(context.Background())
	if err != nil {
		t.Fatalf("DiseaseInfo failed: %v", err)
	}

	// Healthy is excluded; the two disease labels come back in taxonomy
	// order with the failed one degraded, not dropped.
	if len(infos) != 2 {
		t.Fatalf("info count = %d, want 2", len(infos))
	}
	if infos[0].DiseaseType != "Purple Blotch" || infos[1].DiseaseType != "Rust" {
		t.Errorf("order = [%q, %q]", infos[0].DiseaseType, infos[1].DiseaseType)
	}
	if infos[0].Failed {
		t.Error("Purple Blotch should not be degraded")
	}
	if !infos[1].Failed {
		t.Error("Rust should be degraded")
	}
	if infos[0].Image == "" || infos[1].Image == "" {
		t.Error("every entry should carry an image URL")
	}

	// A batch with a degraded entry is not cached.
	if _, ok := store.Get(cacheKeyDiseaseInfo); ok {
		t.Error("combined catalog with degraded entries should not be cached")
	}
}
