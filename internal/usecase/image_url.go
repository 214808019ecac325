package usecase

import (
	"net/url"
	"strings"

	"zappy-core/internal/logging"
)

// ImageHosts resolves catalog-relative poster paths to absolute URLs.
type ImageHosts struct {
	ArtworkBaseURL string // e.g. https://artworks.thetvdb.com
	MediaBaseURL   string // e.g. https://media.rawg.io/media
}

// Format returns an absolute image URL, or "" when raw cannot be resolved.
func (h ImageHosts) Format(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	if strings.HasPrefix(u, "http") {
		if parsed, err := url.Parse(u); err == nil && parsed.Host != "" && (parsed.Scheme == "http" || parsed.Scheme == "https") {
			return u
		}
		logging.Debug().Str("url", u).Msg("[IMAGES] Malformed absolute URL")
	}

	if strings.Contains(u, "banners/") || strings.Contains(u, "artworks/") {
		if !strings.HasPrefix(u, "/") {
			u = "/" + u
		}
		return strings.TrimSuffix(h.ArtworkBaseURL, "/") + u
	}

	if strings.HasPrefix(u, "/media/") {
		return strings.TrimSuffix(h.MediaBaseURL, "/") + u
	}

	logging.Debug().Str("url", u).Msg("[IMAGES] Unrecognized image path")
	return ""
}
