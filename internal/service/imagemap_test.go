package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/config"
)

const galleryPage = `<html><body>
<div class="gallery">
  <a title="Onion Purple Blotch close-up" href="https://plantvillage-production-new.s3.amazonaws.com/image/1.jpg"><img src="x"></a>
  <a title="Onion Downy Mildew on leaf" href="https://other-host.example.com/dm.jpg"><img src="x"></a>
  <a title="unrelated" href="https://plantvillage-production-new.s3.amazonaws.com/image/9.jpg"><img src="x"></a>
  <a href="https://plantvillage-production-new.s3.amazonaws.com/image/10.jpg"><img src="no-title"></a>
</div>
</body></html>`

func TestParseAnchors(t *testing.T) {
	anchors, err := parseAnchors([]byte(galleryPage))
	if err != nil {
		t.Fatalf("parseAnchors failed: %v", err)
	}

	// The untitled anchor is skipped.
	if len(anchors) != 3 {
		t.Fatalf("anchor count = %d, want 3", len(anchors))
	}
	if anchors[0].title != "Onion Purple Blotch close-up" {
		t.Errorf("first anchor title = %q", anchors[0].title)
	}
	if anchors[1].href != "https://other-host.example.com/dm.jpg" {
		t.Errorf("second anchor href = %q", anchors[1].href)
	}
}

func TestMatchLabel(t *testing.T) {
	svc := &ImageMapService{imageHost: "plantvillage-production-new"}
	anchors, err := parseAnchors([]byte(galleryPage))
	if err != nil {
		t.Fatalf("parseAnchors failed: %v", err)
	}

	testCases := []struct {
		name  string
		label string
		want  string
	}{
		{
			name:  "title and host match",
			label: "Purple Blotch",
			want:  "https://plantvillage-production-new.s3.amazonaws.com/image/1.jpg",
		},
		{
			name: "title matches but wrong host falls back to static table",
			// The gallery anchor for downy mildew points at another
			// host, so the static fallback wins.
			label: "Downy Mildew",
			want:  "https://plantvillage-production-new.s3.amazonaws.com/image/1575/file/default-66914755057a3adf3c3cb941859d4b17.jpg",
		},
		{
			name:  "no gallery or fallback match yields placeholder",
			label: "Completely Unknown Disease",
			want:  placeholderImageURL,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.matchLabel(tc.label, anchors)
			if got != tc.want {
				t.Errorf("matchLabel(%q) = %q, want %q", tc.label, got, tc.want)
			}
		})
	}
}

func TestResolveExcludesHealthyAndCaches(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Write([]byte(galleryPage))
	}))
	defer srv.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	svc := NewImageMapService(&config.GalleryConfig{
		SourceURL: srv.URL,
		ImageHost: "plantvillage-production-new",
		Timeout:   5 * time.Second,
	}, store)

	labels := []string{"Purple Blotch", "Healthy", "Rust"}
	m, err := svc.Resolve(context.Background(), labels)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, ok := m["Healthy"]; ok {
		t.Error("healthy label should not appear in the image map")
	}
	if len(m) != 2 {
		t.Errorf("map size = %d, want 2", len(m))
	}

	// Second call comes from cache.
	if _, err := svc.Resolve(context.Background(), labels); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if fetches != 1 {
		t.Errorf("gallery fetched %d times, want 1", fetches)
	}
}

func TestResolveUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := cache.New(time.Minute)
	defer store.Close()

	svc := NewImageMapService(&config.GalleryConfig{
		SourceURL: srv.URL,
		ImageHost: "plantvillage-production-new",
		Timeout:   5 * time.Second,
	}, store)

	if _, err := svc.Resolve(context.Background(), []string{"Rust"}); err == nil {
		t.Error("expected error for upstream 502, got nil")
	}
}
