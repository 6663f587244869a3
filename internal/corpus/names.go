package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/width"
)

const maskedIDRunes = 8

// Names holds human-assigned display names keyed by user id. It is the only
// mutable part of the history corpus; writes are serialized and reads see
// either the old or the new mapping.
type Names struct {
	mu   sync.RWMutex
	path string
	m    map[string]string
}

// NewNames returns a mapping persisted to path on rename. An empty path keeps
// renames in memory only.
func NewNames(path string, initial map[string]string) *Names {
	m := make(map[string]string, len(initial))
	for k, v := range initial {
		m[k] = v
	}
	return &Names{path: path, m: m}
}

// LoadNames reads the optional override file. A missing file yields an empty
// mapping; a malformed one is a load error.
func LoadNames(path string) (*Names, error) {
	if strings.TrimSpace(path) == "" {
		return NewNames("", nil), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewNames(path, nil), nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorpusLoad, path, err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorpusLoad, path, err)
	}
	return NewNames(path, m), nil
}

// Lookup returns the registered name for userID, if any.
func (n *Names) Lookup(userID string) (string, bool) {
	if n == nil {
		return "", false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	name, ok := n.m[userID]
	return name, ok
}

// Display returns the registered name or the masked user id.
func (n *Names) Display(userID string) string {
	if name, ok := n.Lookup(userID); ok && name != "" {
		return name
	}
	return MaskID(userID)
}

// ErrInvalidName reports an empty user id or display name.
var ErrInvalidName = errors.New("user id and name are required")

// Rename registers name for userID and persists the whole mapping. The name is
// stored as entered, trimmed. Repeating a rename is a no-op and does not touch
// the file; names that differ only in character width count as the same.
func (n *Names) Rename(userID, name string) error {
	if n == nil {
		return errors.New("names not configured")
	}
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return ErrInvalidName
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if cur, ok := n.m[userID]; ok && width.Fold.String(cur) == width.Fold.String(name) {
		return nil
	}
	next := make(map[string]string, len(n.m)+1)
	for k, v := range n.m {
		next[k] = v
	}
	next[userID] = name
	if n.path != "" {
		if err := writeNames(n.path, next); err != nil {
			return fmt.Errorf("persist names: %w", err)
		}
	}
	n.m = next
	return nil
}

// writeNames replaces the file atomically so a crash never leaves a torn mapping.
func writeNames(path string, m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".names-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MaskID shortens a user id to its first eight characters plus an ellipsis.
func MaskID(userID string) string {
	if utf8.RuneCountInString(userID) <= maskedIDRunes {
		return userID + "..."
	}
	r := []rune(userID)
	return string(r[:maskedIDRunes]) + "..."
}
