package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gramrelay/gramrelay/fetcher"
	"github.com/gramrelay/gramrelay/instagram"
)

// Artifact is one validated media file staged in a workspace.
type Artifact struct {
	Path      string
	SizeBytes int64
	Kind      instagram.MediaKind
}

// Workspace is the disposable directory one resolution attempt stages
// media into. Each inbound request gets its own, named
// {tmpRoot}/{identity}_{random}, so concurrent requests never collide.
type Workspace struct {
	path string
}

// NewWorkspace creates the scratch directory. The identity is the chat
// or user the request came from; it keeps the namespace readable when
// debugging leftover directories.
func NewWorkspace(tmpRoot string, identity string) (*Workspace, error) {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	path := filepath.Join(tmpRoot, fmt.Sprintf("%s_%s", identity, suffix))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{path: path}, nil
}

func (w *Workspace) Path() string {
	return w.path
}

// FilePath returns the absolute path for a role-named file such as
// image_1.jpg or profile_pic.jpg.
func (w *Workspace) FilePath(name string) string {
	return filepath.Join(w.path, name)
}

// Artifacts lists the staged media files that pass the minimum-size
// check, sorted by name. Undersized leftovers are ignored rather than
// deleted; the whole directory is removed at the end of the attempt.
func (w *Workspace) Artifacts() ([]Artifact, error) {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind := kindOfFile(entry.Name())
		if kind == instagram.MediaKindUnknown {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() <= fetcher.MinValidSize {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Path:      filepath.Join(w.path, entry.Name()),
			SizeBytes: info.Size(),
			Kind:      kind,
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Path < artifacts[j].Path })
	return artifacts, nil
}

// Remove deletes the workspace directory and everything in it. Safe to
// call more than once.
func (w *Workspace) Remove() {
	if err := os.RemoveAll(w.path); err != nil {
		log.WithField("path", w.path).Errorf("error removing workspace: %v", err)
	}
}

func kindOfFile(name string) instagram.MediaKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return instagram.MediaKindImage
	case ".mp4", ".mov":
		return instagram.MediaKindVideo
	default:
		return instagram.MediaKindUnknown
	}
}
