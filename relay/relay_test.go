package relay

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	dbtypes "github.com/gramrelay/gramrelay/database/db"
	"github.com/gramrelay/gramrelay/instagram"
	"github.com/gramrelay/gramrelay/model"
	"github.com/gramrelay/gramrelay/resolver"
)

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendStatus(ctx context.Context, chatID int64, text string) (int, error) {
	args := m.Called(ctx, chatID, text)
	return args.Int(0), args.Error(1)
}

func (m *MockMessenger) EditStatus(ctx context.Context, chatID int64, messageID int, text string) error {
	args := m.Called(ctx, chatID, messageID, text)
	return args.Error(0)
}

func (m *MockMessenger) DeliverArtifacts(ctx context.Context, chatID int64, artifacts []resolver.Artifact) (int, int) {
	args := m.Called(ctx, chatID, artifacts)
	return args.Int(0), args.Int(1)
}

type MockContentResolver struct {
	mock.Mock
}

func (m *MockContentResolver) Resolve(ctx context.Context, rawURL string, identity string, deliver resolver.DeliverFunc) (*resolver.Outcome, error) {
	args := m.Called(ctx, rawURL, identity, deliver)
	if outcome := args.Get(0); outcome != nil {
		return outcome.(*resolver.Outcome), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockActivityLog struct {
	mock.Mock
}

func (m *MockActivityLog) AddRequest(ctx context.Context, chatID int64, userID int64, ref instagram.ContentReference, url string) (string, error) {
	args := m.Called(ctx, chatID, userID, ref, url)
	return args.String(0), args.Error(1)
}

func (m *MockActivityLog) MarkResolved(ctx context.Context, requestID string, strategy string, artifactCount int) error {
	args := m.Called(ctx, requestID, strategy, artifactCount)
	return args.Error(0)
}

func (m *MockActivityLog) MarkFailed(ctx context.Context, requestID string, detail string) error {
	args := m.Called(ctx, requestID, detail)
	return args.Error(0)
}

func (m *MockActivityLog) RequestStats(ctx context.Context) (model.RequestStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.RequestStats), args.Error(1)
}

func (m *MockActivityLog) RecentRequests(ctx context.Context, limit int) ([]model.Request, error) {
	args := m.Called(ctx, limit)
	if requests := args.Get(0); requests != nil {
		return requests.([]model.Request), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestWorkspace(t *testing.T) *resolver.Workspace {
	t.Helper()
	ws, err := resolver.NewWorkspace(t.TempDir(), "test")
	assert.NoError(t, err)
	return ws
}

func writeArtifact(t *testing.T, ws *resolver.Workspace, name string, size int) {
	t.Helper()
	assert.NoError(t, os.WriteFile(ws.FilePath(name), bytes.Repeat([]byte("x"), size), 0644))
}

func textUpdate(chatID int64, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{ID: userID},
		},
	}
}

func runRelay(t *testing.T, r *Relay, updates ...tgbotapi.Update) {
	t.Helper()
	ch := make(chan tgbotapi.Update, len(updates))
	for _, u := range updates {
		ch <- u
	}
	close(ch)
	assert.NoError(t, r.Run(context.Background(), ch))
}

func TestRelayIgnoresUnrelatedMessages(t *testing.T) {
	telegram := &MockMessenger{}
	contentResolver := &MockContentResolver{}
	db := &MockActivityLog{}
	r := NewRelay(telegram, contentResolver, db, 2)

	runRelay(t, r,
		textUpdate(1, 2, "hello there"),
		textUpdate(1, 2, "https://example.com/p/ABC123/"),
		tgbotapi.Update{},
	)

	contentResolver.AssertNumberOfCalls(t, "Resolve", 0)
	telegram.AssertNumberOfCalls(t, "SendStatus", 0)
}

func TestRelayCommands(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		telegram := &MockMessenger{}
		telegram.On("SendStatus", mock.Anything, int64(1), startMsg).Return(10, nil)
		r := NewRelay(telegram, &MockContentResolver{}, &MockActivityLog{}, 2)

		runRelay(t, r, textUpdate(1, 2, "/start"))

		telegram.AssertExpectations(t)
	})

	t.Run("status reports stats and recent requests", func(t *testing.T) {
		telegram := &MockMessenger{}
		telegram.On("SendStatus", mock.Anything, int64(1),
			"Handled 10 requests so far: 7 resolved, 3 failed.\n\nRecent:\n"+
				"• post RESOLVED (embed)\n• story FAILED\n").Return(10, nil)
		db := &MockActivityLog{}
		db.On("RequestStats", mock.Anything).Return(model.RequestStats{Total: 10, Resolved: 7, Failed: 3}, nil)
		db.On("RecentRequests", mock.Anything, 5).Return([]model.Request{
			{ContentType: instagram.ContentTypePost, Status: dbtypes.RequestStatusResolved, Strategy: "embed"},
			{ContentType: instagram.ContentTypeStory, Status: dbtypes.RequestStatusFailed},
		}, nil)
		r := NewRelay(telegram, &MockContentResolver{}, db, 2)

		runRelay(t, r, textUpdate(1, 2, "/status"))

		telegram.AssertExpectations(t)
		db.AssertExpectations(t)
	})

	t.Run("unknown command gets help", func(t *testing.T) {
		telegram := &MockMessenger{}
		telegram.On("SendStatus", mock.Anything, int64(1), helpMsg).Return(10, nil)
		r := NewRelay(telegram, &MockContentResolver{}, &MockActivityLog{}, 2)

		runRelay(t, r, textUpdate(1, 2, "/bogus"))

		telegram.AssertExpectations(t)
	})
}

func TestRelayResolvesContentURL(t *testing.T) {
	url := "https://instagram.com/p/ABC123/"
	telegram := &MockMessenger{}
	telegram.On("SendStatus", mock.Anything, int64(1), analyzingMsg).Return(42, nil)
	telegram.On("EditStatus", mock.Anything, int64(1), 42, "Found 2 files. Uploading...").Return(nil)
	telegram.On("DeliverArtifacts", mock.Anything, int64(1), mock.Anything).Return(2, 2)
	telegram.On("EditStatus", mock.Anything, int64(1), 42, "Done. Uploaded 2 files.").Return(nil)

	contentResolver := &MockContentResolver{}
	contentResolver.On("Resolve", mock.Anything, url, "1", mock.Anything).
		Run(func(args mock.Arguments) {
			deliver := args.Get(3).(resolver.DeliverFunc)
			ws := newTestWorkspace(t)
			defer ws.Remove()
			writeArtifact(t, ws, "image_1.jpg", 2000)
			writeArtifact(t, ws, "video_1.mp4", 2000)
			assert.NoError(t, deliver(ws))
		}).
		Return(&resolver.Outcome{
			Reference: instagram.ContentReference{Type: instagram.ContentTypePost, ID: "ABC123"},
			Strategy:  "embed",
		}, nil)

	db := &MockActivityLog{}
	db.On("AddRequest", mock.Anything, int64(1), int64(2), mock.Anything, url).Return("req1", nil)
	db.On("MarkResolved", mock.Anything, "req1", "embed", 2).Return(nil)

	r := NewRelay(telegram, contentResolver, db, 2)
	runRelay(t, r, textUpdate(1, 2, "check this out "+url))

	telegram.AssertExpectations(t)
	contentResolver.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestRelayReportsPartialUpload(t *testing.T) {
	url := "https://instagram.com/p/ABC123/"
	telegram := &MockMessenger{}
	telegram.On("SendStatus", mock.Anything, int64(1), analyzingMsg).Return(42, nil)
	telegram.On("EditStatus", mock.Anything, int64(1), 42, "Found 2 files. Uploading...").Return(nil)
	telegram.On("DeliverArtifacts", mock.Anything, int64(1), mock.Anything).Return(1, 2)
	telegram.On("EditStatus", mock.Anything, int64(1), 42,
		"Uploaded 1 of 2 files. The rest failed to send; try again later.").Return(nil)

	contentResolver := &MockContentResolver{}
	contentResolver.On("Resolve", mock.Anything, url, "1", mock.Anything).
		Run(func(args mock.Arguments) {
			deliver := args.Get(3).(resolver.DeliverFunc)
			ws := newTestWorkspace(t)
			defer ws.Remove()
			writeArtifact(t, ws, "image_1.jpg", 2000)
			writeArtifact(t, ws, "image_2.jpg", 2000)
			assert.NoError(t, deliver(ws))
		}).
		Return(&resolver.Outcome{Strategy: "embed"}, nil)

	db := &MockActivityLog{}
	db.On("AddRequest", mock.Anything, int64(1), int64(2), mock.Anything, url).Return("req1", nil)
	db.On("MarkResolved", mock.Anything, "req1", "embed", 1).Return(nil)

	r := NewRelay(telegram, contentResolver, db, 2)
	runRelay(t, r, textUpdate(1, 2, url))

	telegram.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestRelayTerminalFailures(t *testing.T) {
	for _, tc := range []struct {
		name    string
		url     string
		outcome *resolver.Outcome
		text    string
		detail  string
	}{
		{
			name:    "unrecognized",
			url:     "https://instagram.com/stories/",
			outcome: &resolver.Outcome{Failure: resolver.FailureUnrecognized},
			text:    invalidURLMsg,
			detail:  "unrecognized URL",
		},
		{
			name:    "login required",
			url:     "https://instagram.com/stories/someuser/123/",
			outcome: &resolver.Outcome{Failure: resolver.FailureLoginRequired},
			text:    loginRequiredMsg,
			detail:  "login required",
		},
		{
			name: "exhausted",
			url:  "https://instagram.com/p/ABC123/",
			outcome: &resolver.Outcome{
				Failure:     resolver.FailureExhausted,
				Diagnostics: []string{"embed: no media found in embed page"},
			},
			text: "Couldn't retrieve this content. It may be private, deleted, or Instagram is rate limiting.\n\n" +
				"• embed: no media found in embed page\n",
			detail: "embed: no media found in embed page",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			telegram := &MockMessenger{}
			telegram.On("SendStatus", mock.Anything, int64(1), analyzingMsg).Return(42, nil)
			telegram.On("EditStatus", mock.Anything, int64(1), 42, tc.text).Return(nil)

			contentResolver := &MockContentResolver{}
			contentResolver.On("Resolve", mock.Anything, tc.url, "1", mock.Anything).Return(tc.outcome, nil)

			db := &MockActivityLog{}
			db.On("AddRequest", mock.Anything, int64(1), int64(2), mock.Anything, tc.url).Return("req1", nil)
			db.On("MarkFailed", mock.Anything, "req1", tc.detail).Return(nil)

			r := NewRelay(telegram, contentResolver, db, 2)
			runRelay(t, r, textUpdate(1, 2, tc.url))

			telegram.AssertExpectations(t)
			db.AssertExpectations(t)
			telegram.AssertNumberOfCalls(t, "DeliverArtifacts", 0)
		})
	}
}

func TestRelayResolverError(t *testing.T) {
	url := "https://instagram.com/p/ABC123/"
	telegram := &MockMessenger{}
	telegram.On("SendStatus", mock.Anything, int64(1), analyzingMsg).Return(42, nil)
	telegram.On("EditStatus", mock.Anything, int64(1), 42, genericFailMsg).Return(nil)

	contentResolver := &MockContentResolver{}
	contentResolver.On("Resolve", mock.Anything, url, "1", mock.Anything).
		Return(nil, errors.New("delivering artifacts: boom"))

	db := &MockActivityLog{}
	db.On("AddRequest", mock.Anything, int64(1), int64(2), mock.Anything, url).Return("req1", nil)
	db.On("MarkFailed", mock.Anything, "req1", "delivering artifacts: boom").Return(nil)

	r := NewRelay(telegram, contentResolver, db, 2)
	runRelay(t, r, textUpdate(1, 2, url))

	telegram.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestRelayStatusSendFailureStillResolves(t *testing.T) {
	url := "https://instagram.com/p/ABC123/"
	telegram := &MockMessenger{}
	telegram.On("SendStatus", mock.Anything, int64(1), analyzingMsg).Return(0, errors.New("blocked"))
	telegram.On("SendStatus", mock.Anything, int64(1), loginRequiredMsg).Return(0, nil)

	contentResolver := &MockContentResolver{}
	contentResolver.On("Resolve", mock.Anything, url, "1", mock.Anything).
		Return(&resolver.Outcome{Failure: resolver.FailureLoginRequired}, nil)

	db := &MockActivityLog{}
	db.On("AddRequest", mock.Anything, int64(1), int64(2), mock.Anything, url).Return("req1", nil)
	db.On("MarkFailed", mock.Anything, "req1", "login required").Return(nil)

	r := NewRelay(telegram, contentResolver, db, 2)
	runRelay(t, r, textUpdate(1, 2, url))

	telegram.AssertExpectations(t)
	telegram.AssertNumberOfCalls(t, "EditStatus", 0)
}

func TestContentURLFromText(t *testing.T) {
	assert.Equal(t, "https://instagram.com/p/A/",
		contentURLFromText("look at https://instagram.com/p/A/ please"))
	assert.Equal(t, "plain text", contentURLFromText("plain text"))
}
