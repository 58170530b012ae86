package resolver

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gramrelay/gramrelay/instagram"
)

type MockMediaClient struct {
	mock.Mock
}

func (m *MockMediaClient) FetchPage(ctx context.Context, pageURL string, userAgent string) (string, error) {
	args := m.Called(ctx, pageURL, userAgent)
	return args.String(0), args.Error(1)
}

func (m *MockMediaClient) Download(ctx context.Context, rawURL string, dest string, userAgent string) (int64, error) {
	args := m.Called(ctx, rawURL, dest, userAgent)
	return args.Get(0).(int64), args.Error(1)
}

type MockStrategy struct {
	mock.Mock
	name string
}

func (m *MockStrategy) Name() string {
	return m.name
}

func (m *MockStrategy) Attempt(ctx context.Context, ref instagram.ContentReference, ws *Workspace) Result {
	args := m.Called(ctx, ref, ws)
	return args.Get(0).(Result)
}

// fakeClient is a deterministic MediaClient for end-to-end resolver
// tests: it always serves the configured page body and writes a valid
// artifact for every download.
type fakeClient struct {
	pageBody  string
	pages     int
	downloads int
}

func (f *fakeClient) FetchPage(ctx context.Context, pageURL string, userAgent string) (string, error) {
	f.pages++
	return f.pageBody, nil
}

func (f *fakeClient) Download(ctx context.Context, rawURL string, dest string, userAgent string) (int64, error) {
	f.downloads++
	if err := os.WriteFile(dest, make([]byte, 2000), 0o644); err != nil {
		return 0, err
	}
	return 2000, nil
}

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir(), "chat42")
	require.NoError(t, err)
	t.Cleanup(ws.Remove)
	return ws
}

func writeArtifact(t *testing.T, ws *Workspace, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(ws.FilePath(name), make([]byte, size), 0o644))
}

func postRef(shortcode string) instagram.ContentReference {
	return instagram.ContentReference{Type: instagram.ContentTypePost, ID: shortcode}
}
