package sandbox

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"clashoj/pkg/errors"
)

// Workspace is a per-job working directory. The name embeds a fresh uuid
// so concurrent jobs never collide on source or binary names.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a fresh directory under root.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		return nil, errors.ValidationError("work_root", "required")
	}
	dir := filepath.Join(root, "job-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.InternalServerError, "create workspace failed")
	}
	return &Workspace{Dir: dir}, nil
}

// WriteSource writes one source file into the workspace.
func (w *Workspace) WriteSource(name, content string) (string, error) {
	if name == "" {
		return "", errors.ValidationError("source_file_name", "required")
	}
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrapf(err, errors.InternalServerError, "write source failed")
	}
	return path, nil
}

// Cleanup removes the workspace and everything generated inside it
// (source, binaries, class files, memory-measurement output). Safe to
// call on every exit path.
func (w *Workspace) Cleanup() {
	if w == nil || w.Dir == "" {
		return
	}
	_ = os.RemoveAll(w.Dir)
}
