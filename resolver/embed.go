package resolver

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gramrelay/gramrelay/instagram"
)

// EmbedStrategy scrapes Instagram's lightweight embed rendering of a
// post. The embed page is served with fewer protections than the main
// site and is the cheapest place to look first.
type EmbedStrategy struct {
	client MediaClient
}

func NewEmbedStrategy(client MediaClient) *EmbedStrategy {
	return &EmbedStrategy{client: client}
}

func (s *EmbedStrategy) Name() string {
	return "embed"
}

func (s *EmbedStrategy) Attempt(ctx context.Context, ref instagram.ContentReference, ws *Workspace) Result {
	body, err := s.client.FetchPage(ctx, instagram.EmbedURL(ref.ID), instagram.MobileUserAgent)
	if err != nil {
		return Result{Diagnostic: fmt.Sprintf("embed page fetch failed: %v", err)}
	}

	downloaded := 0
	for _, mediaURL := range capCandidates(extractMediaURLs(body, imageURLPatterns)) {
		dest := ws.FilePath(fmt.Sprintf("image_%d.jpg", downloaded+1))
		if _, err := s.client.Download(ctx, mediaURL, dest, instagram.MobileUserAgent); err != nil {
			log.WithField("url", mediaURL).Debugf("embed image download failed: %v", err)
			continue
		}
		downloaded++
	}
	for _, mediaURL := range capCandidates(extractMediaURLs(body, videoURLPatterns)) {
		dest := ws.FilePath(fmt.Sprintf("video_%d.mp4", downloaded+1))
		if _, err := s.client.Download(ctx, mediaURL, dest, instagram.MobileUserAgent); err != nil {
			log.WithField("url", mediaURL).Debugf("embed video download failed: %v", err)
			continue
		}
		downloaded++
	}

	if downloaded == 0 {
		return Result{Diagnostic: "no media found in embed page"}
	}
	return Result{
		Success:    true,
		Artifacts:  downloaded,
		Diagnostic: fmt.Sprintf("downloaded %d files from embed page", downloaded),
	}
}
