package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/config"
	"github.com/agrilens/leafsight/internal/domain"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

const cacheKeyImageMap = "scraped_disease_image_map"

// placeholderImageURL is used when neither the gallery page nor the
// fallback table yields a match for a label.
const placeholderImageURL = "https://www.plantdiseases.org/sites/default/files/plant_disease/images/0607.jpg"

// fallbackImages maps a lower-cased partial label to a known reference
// image. Order matters: the first partial match wins.
var fallbackImages = []struct {
	partial string
	url     string
}{
	{"botrytis leaf blight", "https://plantvillage-production-new.s3.amazonaws.com/image/1573/file/default-6fbf67db9e0e53022ae60780bce4da36.jpg"},
	{"downy mildew", "https://plantvillage-production-new.s3.amazonaws.com/image/1575/file/default-66914755057a3adf3c3cb941859d4b17.jpg"},
	{"purple blotch", "https://plantvillage-production-new.s3.amazonaws.com/image/1580/file/default-daa7a8b7491c9383132e0c13d0397864.jpg"},
	{"rust", "https://plantvillage-production-new.s3.amazonaws.com/image/1595/file/default-e870be5164e107fb6c322638db51aa7b.jpg"},
	{"xanthomonas leaf blight", "https://extension.usu.edu/planthealth/ipm/images/agricultural/vegetables/stemphylium-leaf-blight-3.jpg"},
}

// ImageMapService resolves a representative reference image URL per disease
// label by scraping the configured gallery page. The composite label→URL
// map is cached as a single value.
type ImageMapService struct {
	client    *resty.Client
	sourceURL string
	imageHost string
	cache     *cache.Store
}

// NewImageMapService creates an image locator reading through store.
func NewImageMapService(cfg *config.GalleryConfig, store *cache.Store) *ImageMapService {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)

	return &ImageMapService{
		client:    client,
		sourceURL: cfg.SourceURL,
		imageHost: cfg.ImageHost,
		cache:     store,
	}
}

// Resolve returns a label→URL map covering every non-healthy label. Labels
// without a gallery match fall back to the static table, then to the fixed
// placeholder.
func (s *ImageMapService) Resolve(ctx context.Context, labels []string) (map[string]string, error) {
	if v, ok := s.cache.Get(cacheKeyImageMap); ok {
		if m, ok := v.(map[string]string); ok {
			return m, nil
		}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gallery page: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("gallery page returned HTTP %d", resp.StatusCode())
	}

	anchors, err := parseAnchors(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to parse gallery page: %w", err)
	}

	imageMap := make(map[string]string)
	for _, label := range labels {
		if domain.IsHealthyLabel(label) {
			continue
		}
		imageMap[label] = s.matchLabel(label, anchors)
	}

	s.cache.Set(cacheKeyImageMap, imageMap)
	return imageMap, nil
}

// anchor is one <a> element of the gallery page carrying both a title and
// a link target.
type anchor struct {
	title string
	href  string
}

// parseAnchors walks the gallery HTML and collects titled anchors in
// document order.
func parseAnchors(page []byte) ([]anchor, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var anchors []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var a anchor
			for _, attr := range n.Attr {
				switch attr.Key {
				case "title":
					a.title = attr.Val
				case "href":
					a.href = attr.Val
				}
			}
			if a.title != "" && a.href != "" {
				anchors = append(anchors, a)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return anchors, nil
}

// matchLabel returns the first gallery anchor whose title contains the
// lower-cased label and whose link points at the expected image host,
// falling back to the static table and then the placeholder.
func (s *ImageMapService) matchLabel(label string, anchors []anchor) string {
	lower := strings.ToLower(label)

	for _, a := range anchors {
		if strings.Contains(strings.ToLower(a.title), lower) && strings.Contains(a.href, s.imageHost) {
			return a.href
		}
	}

	for _, fb := range fallbackImages {
		if strings.Contains(lower, fb.partial) {
			return fb.url
		}
	}

	return placeholderImageURL
}
