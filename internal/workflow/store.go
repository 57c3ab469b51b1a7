package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanmeadows/autodev/internal/store"
)

// ErrNotFound indicates no record exists for the requested issue.
var ErrNotFound = errors.New("workflow record not found")

// ErrStale indicates the on-disk record advanced since this copy was
// loaded. The caller should reload and retry.
var ErrStale = errors.New("workflow record is stale")

// Store persists one YAML file per workflow record under a state
// directory. Writes are atomic and serialized per record via a file lock;
// reads need no lock.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir (typically .auto/state).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory path.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(issueID string) string {
	return filepath.Join(s.dir, sanitizeID(issueID)+".yaml")
}

// Load reads the record for an issue. Returns ErrNotFound when absent.
func (s *Store) Load(issueID string) (*WorkflowRecord, error) {
	path := s.path(issueID)
	if !store.Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, issueID)
	}
	var rec WorkflowRecord
	if err := store.ReadYAML(path, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save atomically persists the record, refreshing updated_at. Concurrent
// savers of the same issue are serialized, and a saver holding a copy
// that the on-disk record has advanced past gets ErrStale instead of
// silently overwriting the newer state.
func (s *Store) Save(rec *WorkflowRecord) error {
	path := s.path(rec.IssueID)
	return store.WithLock(path, store.DefaultLockTimeout, func() error {
		if store.Exists(path) {
			var cur WorkflowRecord
			if err := store.ReadYAML(path, &cur); err == nil && cur.UpdatedAt.After(rec.UpdatedAt) {
				return fmt.Errorf("%w: %s was updated at %s", ErrStale, rec.IssueID, cur.UpdatedAt.Format(time.RFC3339))
			}
		}
		rec.UpdatedAt = time.Now().UTC()
		return store.WriteYAML(path, rec)
	})
}

// List returns all parseable records, sorted by issue id. Files that fail
// to parse are skipped with a warning.
func (s *Store) List() ([]*WorkflowRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory %s: %w", s.dir, err)
	}

	var records []*WorkflowRecord
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		var rec WorkflowRecord
		if err := store.ReadYAML(filepath.Join(s.dir, name), &rec); err != nil {
			slog.Warn("skipping unparseable state file", "file", name, "error", err)
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Delete removes the record for an issue. Missing records are not an error.
func (s *Store) Delete(issueID string) error {
	path := s.path(issueID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	_ = os.Remove(path + ".lock")
	return nil
}

// PurgeTerminal deletes all records in a terminal status and returns the
// count removed.
func (s *Store) PurgeTerminal() (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range records {
		if !rec.Status.Terminal() {
			continue
		}
		if err := s.Delete(rec.IssueID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// FindByPR returns the record whose PR number matches, or ErrNotFound.
func (s *Store) FindByPR(pr int) (*WorkflowRecord, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.PRNumber == pr {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: no record for PR #%d", ErrNotFound, pr)
}

// sanitizeID makes an issue id safe as a file name ("#42" → "42").
func sanitizeID(id string) string {
	id = strings.TrimPrefix(id, "#")
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
