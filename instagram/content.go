package instagram

import "regexp"

// ContentType identifies what kind of Instagram content a URL points at.
type ContentType string

const (
	ContentTypePost      ContentType = "post"
	ContentTypeReel      ContentType = "reel"
	ContentTypeIGTV      ContentType = "igtv"
	ContentTypeStory     ContentType = "story"
	ContentTypeProfile   ContentType = "profile"
	ContentTypeHighlight ContentType = "highlight"
	ContentTypeUnknown   ContentType = "unknown"
)

// ContentReference is the classified form of an inbound URL.
// ID holds the shortcode (posts/reels/IGTV), username (profiles),
// numeric story ID (stories) or highlight ID. Owner is only populated
// for stories, where the URL carries both a username and a story ID.
type ContentReference struct {
	Type  ContentType
	ID    string
	Owner string
}

// IsAnonymous reports whether the content type is served to
// unauthenticated requests at all. Stories and highlights never are.
func (r ContentReference) IsAnonymous() bool {
	return r.Type != ContentTypeStory && r.Type != ContentTypeHighlight
}

type contentRule struct {
	contentType ContentType
	pattern     *regexp.Regexp
}

// hostPattern matches both the full domain and the instagr.am short
// domain, so short links classify the same as canonical ones.
const hostPattern = `instagr(?:am\.com|\.am)`

// Rules are tried in order and the first match wins. The highlight rule
// sits ahead of the story rule because a highlight URL also matches the
// story shape (with "highlights" captured as the username).
var contentRules = []contentRule{
	{ContentTypePost, regexp.MustCompile(hostPattern + `/p/([A-Za-z0-9_-]+)`)},
	{ContentTypeReel, regexp.MustCompile(hostPattern + `/reel/([A-Za-z0-9_-]+)`)},
	{ContentTypeIGTV, regexp.MustCompile(hostPattern + `/tv/([A-Za-z0-9_-]+)`)},
	{ContentTypeHighlight, regexp.MustCompile(hostPattern + `/stories/highlights/([0-9]+)`)},
	{ContentTypeStory, regexp.MustCompile(hostPattern + `/stories/([A-Za-z0-9_.]+)/([0-9]+)`)},
	{ContentTypeProfile, regexp.MustCompile(hostPattern + `/([A-Za-z0-9_.]+)/?$`)},
}

var profileSuppressors = regexp.MustCompile(`/(p|reel|tv)/`)

// ParseContentURL maps a raw URL to a ContentReference. It returns a
// reference with ContentTypeUnknown when no rule matches or the matched
// identifier is empty. A profile match is suppressed when the URL also
// contains a post/reel/IGTV path segment, so a post URL is never
// misread as a reference to its author's profile.
func ParseContentURL(rawURL string) ContentReference {
	for _, rule := range contentRules {
		matches := rule.pattern.FindStringSubmatch(rawURL)
		if matches == nil {
			continue
		}
		switch rule.contentType {
		case ContentTypeStory:
			return ContentReference{Type: ContentTypeStory, Owner: matches[1], ID: matches[2]}
		case ContentTypeProfile:
			if profileSuppressors.MatchString(rawURL) {
				continue
			}
			if matches[1] == "" {
				continue
			}
			return ContentReference{Type: ContentTypeProfile, ID: matches[1]}
		default:
			if matches[1] == "" {
				continue
			}
			return ContentReference{Type: rule.contentType, ID: matches[1]}
		}
	}
	return ContentReference{Type: ContentTypeUnknown}
}

// ContainsDomainMarker reports whether text mentions the Instagram
// domain at all. The relay only attempts classification when this is
// true.
var domainMarker = regexp.MustCompile(hostPattern)

func ContainsDomainMarker(text string) bool {
	return domainMarker.MatchString(text)
}
