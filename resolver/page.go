package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"github.com/gramrelay/gramrelay/instagram"
)

// PageStrategy scrapes the canonical desktop page of a post. Its
// primary path parses the window._sharedData blob Instagram assigns in
// a script tag and walks it as a defined schema, which also handles
// carousel posts. When the blob is missing or unparsable it falls back
// to the same textual patterns the embed strategy uses, applied to the
// full desktop page.
type PageStrategy struct {
	client MediaClient
}

func NewPageStrategy(client MediaClient) *PageStrategy {
	return &PageStrategy{client: client}
}

func (s *PageStrategy) Name() string {
	return "page"
}

// sharedData mirrors the slice of Instagram's render-time page data the
// strategy walks: entry_data -> PostPage[0] -> graphql -> shortcode_media.
type sharedData struct {
	EntryData struct {
		PostPage []struct {
			Graphql struct {
				ShortcodeMedia mediaNode `json:"shortcode_media"`
			} `json:"graphql"`
		} `json:"PostPage"`
	} `json:"entry_data"`
}

type mediaNode struct {
	DisplayURL            string `json:"display_url"`
	VideoURL              string `json:"video_url"`
	EdgeSidecarToChildren struct {
		Edges []struct {
			Node mediaNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

var sharedDataAssignment = regexp.MustCompile(`(?s)window\._sharedData\s*=\s*(\{.*?\});`)

func (s *PageStrategy) Attempt(ctx context.Context, ref instagram.ContentReference, ws *Workspace) Result {
	body, err := s.client.FetchPage(ctx, instagram.PostURL(ref.ID), instagram.DesktopUserAgent)
	if err != nil {
		return Result{Diagnostic: fmt.Sprintf("canonical page fetch failed: %v", err)}
	}

	media, err := extractSharedMedia(body)
	if err != nil {
		log.WithField("shortcode", ref.ID).Debugf("shared data unavailable, using pattern fallback: %v", err)
		return s.patternFallback(ctx, body, ws)
	}

	downloaded := 0
	if media.DisplayURL != "" {
		if _, err := s.client.Download(ctx, media.DisplayURL, ws.FilePath("image_1.jpg"), instagram.DesktopUserAgent); err == nil {
			downloaded++
		}
	}
	if media.VideoURL != "" {
		if _, err := s.client.Download(ctx, media.VideoURL, ws.FilePath("video_1.mp4"), instagram.DesktopUserAgent); err == nil {
			downloaded++
		}
	}
	for i, edge := range media.EdgeSidecarToChildren.Edges {
		node := edge.Node
		if node.DisplayURL != "" {
			dest := ws.FilePath(fmt.Sprintf("carousel_%d.jpg", i+1))
			if _, err := s.client.Download(ctx, node.DisplayURL, dest, instagram.DesktopUserAgent); err == nil {
				downloaded++
			}
		}
		if node.VideoURL != "" {
			dest := ws.FilePath(fmt.Sprintf("carousel_video_%d.mp4", i+1))
			if _, err := s.client.Download(ctx, node.VideoURL, dest, instagram.DesktopUserAgent); err == nil {
				downloaded++
			}
		}
	}

	if downloaded == 0 {
		return Result{Diagnostic: "shared data present but no downloadable media"}
	}
	return Result{
		Success:    true,
		Artifacts:  downloaded,
		Diagnostic: fmt.Sprintf("downloaded %d files from canonical page", downloaded),
	}
}

func (s *PageStrategy) patternFallback(ctx context.Context, body string, ws *Workspace) Result {
	downloaded := 0
	for _, mediaURL := range capCandidates(extractMediaURLs(body, imageURLPatterns)) {
		dest := ws.FilePath(fmt.Sprintf("image_%d.jpg", downloaded+1))
		if _, err := s.client.Download(ctx, mediaURL, dest, instagram.DesktopUserAgent); err == nil {
			downloaded++
		}
	}
	for _, mediaURL := range capCandidates(extractMediaURLs(body, videoURLPatterns)) {
		dest := ws.FilePath(fmt.Sprintf("video_%d.mp4", downloaded+1))
		if _, err := s.client.Download(ctx, mediaURL, dest, instagram.DesktopUserAgent); err == nil {
			downloaded++
		}
	}
	if downloaded == 0 {
		return Result{Diagnostic: "no media found via page scraping"}
	}
	return Result{
		Success:    true,
		Artifacts:  downloaded,
		Diagnostic: fmt.Sprintf("downloaded %d files via page pattern fallback", downloaded),
	}
}

// extractSharedMedia locates the script tag carrying window._sharedData
// and parses out the post's media node.
func extractSharedMedia(body string) (*mediaNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	var blob string
	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		matches := sharedDataAssignment.FindStringSubmatch(sel.Text())
		if matches != nil {
			blob = matches[1]
			return false
		}
		return true
	})
	if blob == "" {
		return nil, errors.New("window._sharedData script not found")
	}

	var data sharedData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, fmt.Errorf("parsing shared data: %w", err)
	}
	if len(data.EntryData.PostPage) == 0 {
		return nil, errors.New("shared data has no post entry")
	}
	media := data.EntryData.PostPage[0].Graphql.ShortcodeMedia
	return &media, nil
}
