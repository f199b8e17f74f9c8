// Package workdir provides session-scoped working directories for the
// validate/scan/deploy collaborators. Each session owns its directory
// exclusively: concurrent sessions sharing one directory would corrupt each
// other's validation results and deployment state.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager hands out per-session directories under a common root and
// serializes access to each of them.
type Manager struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager rooted at root, creating it if needed.
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	return &Manager{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// Root returns the manager's root directory.
func (m *Manager) Root() string {
	return m.root
}

// Acquire returns the working directory handle for a session, creating the
// directory if needed and taking its exclusive lock. The caller must call
// Release when the deployment-affecting work is done.
func (m *Manager) Acquire(sessionID string) (*Dir, error) {
	path := filepath.Join(m.root, sessionID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", path, err)
	}

	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return &Dir{path: path, lock: lock}, nil
}

// Remove deletes a session's working directory. The session must not hold
// an acquired handle.
func (m *Manager) Remove(sessionID string) error {
	return os.RemoveAll(filepath.Join(m.root, sessionID))
}

// Dir is an exclusively-held session working directory.
type Dir struct {
	path     string
	lock     *sync.Mutex
	released bool
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Release gives up the exclusive lock. Safe to call more than once.
func (d *Dir) Release() {
	if d.released {
		return
	}
	d.released = true
	d.lock.Unlock()
}

// WriteArtifacts replaces the artifact files in the directory with the given
// set. Terraform's own bookkeeping (.terraform, lock file, state files) is
// preserved so deployment state survives regeneration cycles; everything
// else is removed before writing.
func (d *Dir) WriteArtifacts(artifacts map[string]string) error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", d.path, err)
	}
	for _, entry := range entries {
		if preserved(entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(d.path, entry.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", entry.Name(), err)
		}
	}

	for name, content := range artifacts {
		if filepath.Base(name) != name {
			return fmt.Errorf("artifact name %q must not contain path separators", name)
		}
		if err := os.WriteFile(filepath.Join(d.path, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// ReadArtifacts reads back the named artifacts, typically after the
// validator has reformatted them in place.
func (d *Dir) ReadArtifacts(names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(d.path, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out[name] = string(data)
	}
	return out, nil
}

// preserved reports whether a directory entry is terraform bookkeeping that
// must survive artifact rewrites.
func preserved(name string) bool {
	if name == ".terraform" || name == ".terraform.lock.hcl" {
		return true
	}
	return strings.HasPrefix(name, "terraform.tfstate")
}
