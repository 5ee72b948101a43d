// Package localfs maps remote keys onto a local directory tree.
//
// The remote key space is flat, so "a" and "a/b" may both exist remotely while a
// filesystem can only hold one node named "a". When an ancestor directory of a
// destination already exists as a regular file, the file is moved aside to a
// backup name and the directory is created in its place. Nothing is deleted.
package localfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// BackupExt is appended to files moved aside by conflict resolution.
const BackupExt = ".bak"

const (
	keySeparator   = "/"
	dirPerm        = 0o755
	backupAttempts = 16
)

var (
	// ErrDirectoryConflict marks a file that blocked directory creation. It is
	// only ever reported as a warning.
	ErrDirectoryConflict = errors.New("directory conflict")
	// ErrEmptyPath is returned by Map for keys naming the sync root itself.
	ErrEmptyPath = errors.New("key maps to the sync root")
	// ErrOutsideRoot is returned by Map for keys that would escape the sync root.
	ErrOutsideRoot = errors.New("key escapes the sync root")
)

// LocalMapping is where one remote key lands on disk.
type LocalMapping struct {
	RemoteKey string
	LocalPath string
	// IsDir is set for directory marker keys ending in "/".
	IsDir bool
	// Depth is the number of separators in the relative key, counting a
	// trailing one. Ancestors always have a smaller depth than descendants.
	Depth            int
	ConflictResolved bool
}

// Conflict records a file kept under BackupPath because Path is needed, or
// already taken, by a directory.
type Conflict struct {
	Path       string
	BackupPath string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s: %s kept as %s", ErrDirectoryConflict, c.Path, c.BackupPath)
}

func (c Conflict) Unwrap() error {
	return ErrDirectoryConflict
}

// Mapper converts keys to paths under a sync root and prepares their parents.
// It is safe for concurrent use; directory preparation is serialised.
type Mapper struct {
	fs     afero.Fs
	root   string
	prefix string

	mu         sync.Mutex
	newToken   func() string
	onConflict func(Conflict)
}

// NewMapper creates a Mapper for keys listed under prefix. root is made absolute.
func NewMapper(fs afero.Fs, root, prefix string) (*Mapper, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	return &Mapper{
		fs:       fs,
		root:     abs,
		prefix:   prefix,
		newToken: randomToken,
	}, nil
}

// WithConflictHandler registers fn to be called for every resolved conflict.
func (m *Mapper) WithConflictHandler(fn func(Conflict)) *Mapper {
	m.onConflict = fn
	return m
}

// Root returns the absolute sync root.
func (m *Mapper) Root() string {
	return m.root
}

// Fs returns the filesystem the mapper writes to.
func (m *Mapper) Fs() afero.Fs {
	return m.fs
}

// EnsureRoot creates the sync root and any missing parents.
func (m *Mapper) EnsureRoot() error {
	if err := m.fs.MkdirAll(m.root, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", m.root, err)
	}
	info, err := m.fs.Stat(m.root)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", m.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", m.root)
	}
	return nil
}

// Map computes the local path of key. It does not touch the filesystem.
func (m *Mapper) Map(key string) (LocalMapping, error) {
	rel := strings.TrimPrefix(key, m.prefix)
	isDir := strings.HasSuffix(rel, keySeparator)

	var segments []string
	for _, segment := range strings.Split(rel, keySeparator) {
		switch segment {
		case "", ".":
		case "..":
			return LocalMapping{}, fmt.Errorf("%w: %q", ErrOutsideRoot, key)
		default:
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		return LocalMapping{}, fmt.Errorf("%w: %q", ErrEmptyPath, key)
	}

	depth := len(segments) - 1
	if isDir {
		depth++
	}

	return LocalMapping{
		RemoteKey: key,
		LocalPath: filepath.Join(m.root, filepath.Join(segments...)),
		IsDir:     isDir,
		Depth:     depth,
	}, nil
}

// EnsureParent makes every ancestor of mapping.LocalPath a directory, moving
// aside regular files that are in the way. When the destination of a file
// already exists as a directory, the file is redirected to a fresh backup name
// next to it and the directory is left untouched.
func (m *Mapper) EnsureParent(mapping LocalMapping) (LocalMapping, error) {
	m.mu.Lock()
	conflicts, err := m.ensureDir(filepath.Dir(mapping.LocalPath))
	if err == nil && !mapping.IsDir {
		var redirect *Conflict
		mapping.LocalPath, redirect, err = m.redirectFromDir(mapping.LocalPath)
		if redirect != nil {
			conflicts = append(conflicts, *redirect)
		}
	}
	m.mu.Unlock()

	mapping.ConflictResolved = len(conflicts) > 0
	m.report(conflicts)
	return mapping, err
}

// EnsureDir creates mapping.LocalPath itself as a directory.
func (m *Mapper) EnsureDir(mapping LocalMapping) (LocalMapping, error) {
	m.mu.Lock()
	conflicts, err := m.ensureDir(mapping.LocalPath)
	m.mu.Unlock()

	mapping.ConflictResolved = len(conflicts) > 0
	m.report(conflicts)
	return mapping, err
}

// report logs and forwards conflicts. The caller must not hold m.mu.
func (m *Mapper) report(conflicts []Conflict) {
	for _, conflict := range conflicts {
		slog.Warn("directory conflict resolved", "path", conflict.Path, "backup", conflict.BackupPath)
		if m.onConflict != nil {
			m.onConflict(conflict)
		}
	}
}

// ensureDir walks from the root down to dir. The caller holds m.mu.
func (m *Mapper) ensureDir(dir string) ([]Conflict, error) {
	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}

	var conflicts []Conflict
	if rel != "." {
		current := m.root
		for _, segment := range strings.Split(rel, string(filepath.Separator)) {
			current = filepath.Join(current, segment)

			info, err := m.fs.Stat(current)
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", current, err)
			}
			if info.IsDir() {
				continue
			}

			conflict, err := m.moveAside(current)
			if err != nil {
				return nil, err
			}
			conflicts = append(conflicts, conflict)
			break
		}
	}

	if err := m.fs.MkdirAll(dir, dirPerm); err != nil {
		return conflicts, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return conflicts, nil
}

// redirectFromDir returns path unchanged unless it is an existing directory,
// in which case a free backup name beside it is returned. The caller holds m.mu.
func (m *Mapper) redirectFromDir(path string) (string, *Conflict, error) {
	info, err := m.fs.Stat(path)
	if err != nil || !info.IsDir() {
		return path, nil, nil
	}
	backup, err := m.freeBackupName(path)
	if err != nil {
		return path, nil, err
	}
	return backup, &Conflict{Path: path, BackupPath: backup}, nil
}

// moveAside renames path to an unused backup name.
func (m *Mapper) moveAside(path string) (Conflict, error) {
	backup, err := m.freeBackupName(path)
	if err != nil {
		return Conflict{}, err
	}
	if err := m.fs.Rename(path, backup); err != nil {
		return Conflict{}, fmt.Errorf("failed to move %s to %s: %w", path, backup, err)
	}
	return Conflict{Path: path, BackupPath: backup}, nil
}

func (m *Mapper) freeBackupName(path string) (string, error) {
	for range backupAttempts {
		backup := BackupName(path, m.newToken())
		if _, err := m.fs.Stat(backup); errors.Is(err, os.ErrNotExist) {
			return backup, nil
		}
	}
	return "", fmt.Errorf("failed to find a free backup name for %s", path)
}

// BackupName derives the backup path for path from a token.
func BackupName(path, token string) string {
	return path + "." + token + BackupExt
}

// randomToken returns 8 random hex characters.
func randomToken() string {
	return uuid.NewString()[:8]
}
