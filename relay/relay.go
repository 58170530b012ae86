// Package relay connects the Telegram transport to the resolver: it
// watches the update stream for Instagram URLs, resolves each one in
// its own goroutine, uploads what was retrieved, and records the
// attempt in the activity log.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/gramrelay/gramrelay/instagram"
	"github.com/gramrelay/gramrelay/model"
	"github.com/gramrelay/gramrelay/resolver"
)

const (
	startMsg = `I download public Instagram content.

Send me a link to a post, reel, IGTV video or profile and I'll fetch what's publicly available:
• https://instagram.com/p/ABC123/ (post)
• https://instagram.com/reel/XYZ789/ (reel)
• https://instagram.com/username/ (profile picture)

Stories and highlights are private by nature and can't be fetched anonymously.`

	helpMsg = `Copy a link from the Instagram app (Share > Copy Link) and send it here.

Works without login: public posts, reels, IGTV, carousels, profile pictures.
Needs login (unsupported): stories, highlights, private accounts.

Commands: /start /help /status`

	invalidURLMsg = `That doesn't look like a supported Instagram URL.

Valid examples:
• https://instagram.com/p/ABC123/ (post)
• https://instagram.com/reel/XYZ789/ (reel)
• https://instagram.com/tv/ABC123/ (IGTV)
• https://instagram.com/username/ (profile)`

	loginRequiredMsg = `This content requires a logged-in session.

Stories and highlights are only visible to followers, so Instagram never serves them to anonymous requests. Public posts, reels and profile pictures from the same account may still work.`

	analyzingMsg   = "Analyzing Instagram URL..."
	genericFailMsg = "Something went wrong while processing this link. Please try again in a few minutes."
)

// ContentResolver is the resolution capability the relay consumes,
// satisfied by *resolver.Resolver.
type ContentResolver interface {
	Resolve(ctx context.Context, rawURL string, identity string, deliver resolver.DeliverFunc) (*resolver.Outcome, error)
}

// Messenger is the outbound chat capability, satisfied by
// *service.TelegramService.
type Messenger interface {
	SendStatus(ctx context.Context, chatID int64, text string) (int, error)
	EditStatus(ctx context.Context, chatID int64, messageID int, text string) error
	DeliverArtifacts(ctx context.Context, chatID int64, artifacts []resolver.Artifact) (int, int)
}

// ActivityLog is the append-only request record, satisfied by
// *database.Database.
type ActivityLog interface {
	AddRequest(ctx context.Context, chatID int64, userID int64, ref instagram.ContentReference, url string) (string, error)
	MarkResolved(ctx context.Context, requestID string, strategy string, artifactCount int) error
	MarkFailed(ctx context.Context, requestID string, detail string) error
	RequestStats(ctx context.Context) (model.RequestStats, error)
	RecentRequests(ctx context.Context, limit int) ([]model.Request, error)
}

type Relay struct {
	telegram Messenger
	resolver ContentResolver
	db       ActivityLog

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewRelay(telegram Messenger, contentResolver ContentResolver, db ActivityLog, maxConcurrent int) *Relay {
	return &Relay{
		telegram: telegram,
		resolver: contentResolver,
		db:       db,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Run consumes updates until the channel closes or the context is
// canceled, then waits for in-flight resolutions to finish. Messages
// are handled concurrently, each in its own goroutine, bounded by the
// semaphore; within one message strategies still run sequentially.
func (r *Relay) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Debug("exiting relay by closing channel")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.Text == "" || msg.Chat == nil {
				continue
			}
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		r.handleCommand(ctx, chatID, strings.Fields(msg.Text)[0])
	case instagram.ContainsDomainMarker(msg.Text):
		contentURL := contentURLFromText(msg.Text)
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.sem.Release(1)
			r.handleContentURL(ctx, chatID, userID, contentURL)
		}()
	}
}

func (r *Relay) handleCommand(ctx context.Context, chatID int64, command string) {
	var reply string
	switch command {
	case "/start":
		reply = startMsg
	case "/help":
		reply = helpMsg
	case "/status":
		stats, err := r.db.RequestStats(ctx)
		if err != nil {
			log.Errorf("error reading request stats: %v", err)
			reply = "Stats are unavailable right now."
			break
		}
		reply = fmt.Sprintf("Handled %d requests so far: %d resolved, %d failed.", stats.Total, stats.Resolved, stats.Failed)
		if recent, err := r.db.RecentRequests(ctx, 5); err == nil && len(recent) > 0 {
			reply += "\n\nRecent:\n" + formatRecent(recent)
		}
	default:
		reply = helpMsg
	}
	if _, err := r.telegram.SendStatus(ctx, chatID, reply); err != nil {
		log.WithField("chatID", chatID).Errorf("error sending command reply: %v", err)
	}
}

func (r *Relay) handleContentURL(ctx context.Context, chatID int64, userID int64, contentURL string) {
	logger := log.WithField("chatID", chatID).WithField("url", contentURL)

	statusID, err := r.telegram.SendStatus(ctx, chatID, analyzingMsg)
	if err != nil {
		// Progress text is best effort; resolution continues without it.
		logger.Warnf("error sending status message: %v", err)
	}

	ref := instagram.ParseContentURL(contentURL)
	requestID, err := r.db.AddRequest(ctx, chatID, userID, ref, contentURL)
	if err != nil {
		logger.Errorf("error recording request: %v", err)
	}

	uploaded, total := 0, 0
	outcome, err := r.resolver.Resolve(ctx, contentURL, fmt.Sprintf("%d", chatID), func(ws *resolver.Workspace) error {
		artifacts, err := ws.Artifacts()
		if err != nil {
			return err
		}
		if err := r.editStatus(ctx, chatID, statusID, fmt.Sprintf("Found %d files. Uploading...", len(artifacts))); err != nil {
			logger.Warnf("error updating status message: %v", err)
		}
		uploaded, total = r.telegram.DeliverArtifacts(ctx, chatID, artifacts)
		return nil
	})
	if err != nil {
		logger.Errorf("error resolving content: %v", err)
		r.finish(ctx, requestID, chatID, statusID, genericFailMsg, false, "", 0, err.Error())
		return
	}

	switch outcome.Failure {
	case resolver.FailureNone:
		logger.WithField("strategy", outcome.Strategy).Infof("resolved %d artifacts, uploaded %d", total, uploaded)
		text := fmt.Sprintf("Done. Uploaded %d files.", uploaded)
		if uploaded < total {
			text = fmt.Sprintf("Uploaded %d of %d files. The rest failed to send; try again later.", uploaded, total)
		}
		r.finish(ctx, requestID, chatID, statusID, text, true, outcome.Strategy, uploaded, "")
	case resolver.FailureUnrecognized:
		r.finish(ctx, requestID, chatID, statusID, invalidURLMsg, false, "", 0, "unrecognized URL")
	case resolver.FailureLoginRequired:
		r.finish(ctx, requestID, chatID, statusID, loginRequiredMsg, false, "", 0, "login required")
	case resolver.FailureExhausted:
		text := "Couldn't retrieve this content. It may be private, deleted, or Instagram is rate limiting.\n\n" +
			formatDiagnostics(outcome.Diagnostics)
		r.finish(ctx, requestID, chatID, statusID, text, false, "", 0, strings.Join(outcome.Diagnostics, "; "))
	}
}

func (r *Relay) finish(ctx context.Context, requestID string, chatID int64, statusID int, text string, resolved bool, strategy string, artifactCount int, detail string) {
	if err := r.editStatus(ctx, chatID, statusID, text); err != nil {
		log.WithField("chatID", chatID).Errorf("error sending terminal status: %v", err)
	}
	if requestID == "" {
		return
	}
	var err error
	if resolved {
		err = r.db.MarkResolved(ctx, requestID, strategy, artifactCount)
	} else {
		err = r.db.MarkFailed(ctx, requestID, detail)
	}
	if err != nil {
		log.WithField("requestID", requestID).Errorf("error updating request record: %v", err)
	}
}

// editStatus falls back to a fresh message when there is no earlier
// status message to edit.
func (r *Relay) editStatus(ctx context.Context, chatID int64, statusID int, text string) error {
	if statusID == 0 {
		_, err := r.telegram.SendStatus(ctx, chatID, text)
		return err
	}
	return r.telegram.EditStatus(ctx, chatID, statusID, text)
}

func contentURLFromText(text string) string {
	for _, field := range strings.Fields(text) {
		if instagram.ContainsDomainMarker(field) {
			return field
		}
	}
	return text
}

func formatRecent(requests []model.Request) string {
	var b strings.Builder
	for _, req := range requests {
		fmt.Fprintf(&b, "• %s %s", req.ContentType, req.Status)
		if req.Strategy != "" {
			fmt.Fprintf(&b, " (%s)", req.Strategy)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatDiagnostics(diagnostics []string) string {
	var b strings.Builder
	for _, d := range diagnostics {
		fmt.Fprintf(&b, "• %s\n", d)
	}
	return b.String()
}
