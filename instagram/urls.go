package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

// Realistic browser user agents. Instagram rejects requests without one,
// and serves different markup to mobile and desktop browsers.
const (
	MobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// MediaKind is the inferred kind of a media URL or artifact. The
// inference is heuristic (URL substring), not authoritative.
type MediaKind string

const (
	MediaKindImage   MediaKind = "image"
	MediaKindVideo   MediaKind = "video"
	MediaKindUnknown MediaKind = "unknown"
)

func EmbedURL(shortcode string) string {
	return fmt.Sprintf("https://www.instagram.com/p/%s/embed/", shortcode)
}

func PostURL(shortcode string) string {
	return fmt.Sprintf("https://www.instagram.com/p/%s/", shortcode)
}

func ProfileURL(username string) string {
	return fmt.Sprintf("https://www.instagram.com/%s/", username)
}

// OEmbedURL builds the public oEmbed endpoint URL for a post, with the
// post's canonical URL encoded as a query parameter.
func OEmbedURL(shortcode string) string {
	return fmt.Sprintf("https://api.instagram.com/oembed/?url=%s", url.QueryEscape(PostURL(shortcode)))
}

// ampersandEscape is the six-character JSON escape sequence Instagram
// leaves in URLs embedded in HTML source.
const ampersandEscape = "\\u0026"

// UnescapeMediaURL undoes the JSON escaping Instagram applies to URLs
// embedded in HTML, where every ampersand appears as a literal
// backslash-u0026 sequence. Left in place, only the first query
// parameter of a media URL survives.
func UnescapeMediaURL(rawURL string) string {
	return strings.ReplaceAll(rawURL, ampersandEscape, "&")
}

// NormalizeMediaURL gives protocol-relative URLs an https scheme.
func NormalizeMediaURL(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return rawURL
}

// IsCDNURL reports whether a discovered URL points at Instagram's
// content-delivery surface. Pages contain plenty of unrelated
// third-party URLs; anything without one of these markers is discarded.
func IsCDNURL(rawURL string) bool {
	return strings.Contains(rawURL, "cdninstagram") ||
		strings.Contains(rawURL, "scontent") ||
		strings.Contains(rawURL, "instagram")
}

// KindOfURL infers the media kind from a URL's substring.
func KindOfURL(rawURL string) MediaKind {
	switch {
	case strings.Contains(rawURL, ".jpg") || strings.Contains(rawURL, ".jpeg"):
		return MediaKindImage
	case strings.Contains(rawURL, ".mp4"):
		return MediaKindVideo
	default:
		return MediaKindUnknown
	}
}
