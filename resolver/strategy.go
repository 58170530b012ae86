package resolver

import (
	"context"
	"regexp"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/gramrelay/gramrelay/instagram"
)

// maxPerKind caps how many images or videos one strategy downloads from
// a single page.
const maxPerKind = 5

// Result is what a strategy reports back to the orchestrator. A
// strategy never lets an error escape; failures are folded into a
// Result with Success false and a human-readable diagnostic.
type Result struct {
	Success    bool
	Artifacts  int
	Diagnostic string
}

// Strategy is one independent way of turning a content reference into
// staged media files.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, ref instagram.ContentReference, ws *Workspace) Result
}

// MediaClient is the HTTP capability strategies consume, satisfied by
// *fetcher.Client.
type MediaClient interface {
	FetchPage(ctx context.Context, pageURL string, userAgent string) (string, error)
	Download(ctx context.Context, rawURL string, dest string, userAgent string) (int64, error)
}

// Textual key/value patterns for media URLs inside Instagram HTML.
// These are the fallback mechanism when no structured data blob is
// available; the URLs they capture still carry JSON escaping.
var (
	imageURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"display_src":"([^"]+)"`),
		regexp.MustCompile(`"src":"([^"]*\.cdninstagram[^"]*\.jpg[^"]*)"`),
		regexp.MustCompile(`content="([^"]*scontent[^"]*\.jpg[^"]*)"`),
	}
	videoURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"video_url":"([^"]+)"`),
		regexp.MustCompile(`"src":"([^"]*\.cdninstagram[^"]*\.mp4[^"]*)"`),
	}
)

// extractMediaURLs applies the given patterns to an HTML body and
// returns unescaped CDN URLs, deduplicated within this invocation and
// sorted so download order is deterministic.
func extractMediaURLs(body string, patterns []*regexp.Regexp) []string {
	seen := map[string]struct{}{}
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			candidate := instagram.UnescapeMediaURL(match[1])
			if !instagram.IsCDNURL(candidate) {
				continue
			}
			seen[candidate] = struct{}{}
		}
	}
	urls := maps.Keys(seen)
	sort.Strings(urls)
	return urls
}

func capCandidates(urls []string) []string {
	if len(urls) > maxPerKind {
		return urls[:maxPerKind]
	}
	return urls
}
