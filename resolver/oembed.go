package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gramrelay/gramrelay/instagram"
)

// OEmbedStrategy probes Instagram's public oEmbed endpoint. It can
// recover title and author metadata but the endpoint never exposes a
// downloadable media URL, so for media purposes it always reports
// failure. It stays in the strategy order as a diagnostic aid: its
// output tells the user whether the post exists at all.
type OEmbedStrategy struct {
	client MediaClient
}

func NewOEmbedStrategy(client MediaClient) *OEmbedStrategy {
	return &OEmbedStrategy{client: client}
}

func (s *OEmbedStrategy) Name() string {
	return "oembed"
}

type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

func (s *OEmbedStrategy) Attempt(ctx context.Context, ref instagram.ContentReference, ws *Workspace) Result {
	body, err := s.client.FetchPage(ctx, instagram.OEmbedURL(ref.ID), instagram.DesktopUserAgent)
	if err != nil {
		return Result{Diagnostic: fmt.Sprintf("oEmbed endpoint failed: %v", err)}
	}

	var meta oembedResponse
	if err := json.Unmarshal([]byte(body), &meta); err != nil {
		return Result{Diagnostic: "oEmbed response was not parsable"}
	}
	if meta.AuthorName != "" {
		return Result{Diagnostic: fmt.Sprintf("oEmbed found post by @%s but provides metadata only, no media access", meta.AuthorName)}
	}
	return Result{Diagnostic: "oEmbed provides metadata only, no media access"}
}
