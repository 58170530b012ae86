package resolver

import (
	"context"
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"

	"github.com/gramrelay/gramrelay/instagram"
)

// ProfilePicStrategy downloads the profile picture from a public
// profile page. The high-definition URL takes precedence over the
// generic one; the first candidate that downloads cleanly wins.
type ProfilePicStrategy struct {
	client MediaClient
}

func NewProfilePicStrategy(client MediaClient) *ProfilePicStrategy {
	return &ProfilePicStrategy{client: client}
}

func (s *ProfilePicStrategy) Name() string {
	return "profile-pic"
}

var profilePicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"profile_pic_url_hd":"([^"]+)"`),
	regexp.MustCompile(`"profile_pic_url":"([^"]+)"`),
	regexp.MustCompile(`content="([^"]*\.cdninstagram[^"]*\.jpg[^"]*)"`),
}

func (s *ProfilePicStrategy) Attempt(ctx context.Context, ref instagram.ContentReference, ws *Workspace) Result {
	body, err := s.client.FetchPage(ctx, instagram.ProfileURL(ref.ID), instagram.MobileUserAgent)
	if err != nil {
		return Result{Diagnostic: fmt.Sprintf("profile page fetch failed (account may be private): %v", err)}
	}

	for _, pattern := range profilePicPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			candidate := instagram.UnescapeMediaURL(match[1])
			if !instagram.IsCDNURL(candidate) || instagram.KindOfURL(candidate) != instagram.MediaKindImage {
				continue
			}
			dest := ws.FilePath("profile_pic.jpg")
			if _, err := s.client.Download(ctx, candidate, dest, instagram.MobileUserAgent); err != nil {
				log.WithField("url", candidate).Debugf("profile picture download failed: %v", err)
				continue
			}
			return Result{Success: true, Artifacts: 1, Diagnostic: "downloaded profile picture"}
		}
	}
	return Result{Diagnostic: "no profile picture found or profile is private"}
}
