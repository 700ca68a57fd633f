package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"latentfm/pkg/logx"
)

// Store is the single owner of the persisted queue file.
//
// The publisher and generator both mutate the queue through Store, and
// each operation is a full load-mutate-save cycle guarded by an
// in-process mutex plus a file-level advisory lock. Without the lock a
// concurrent MarkPublished and Append would race on the whole-file
// overwrite and silently drop one of the writes.
type Store struct {
	path string
	log  logx.Logger

	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates a store for the queue file at path. The file itself
// may not exist yet; the advisory lock lives next to it because the
// queue file is replaced by rename on every save.
func NewStore(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		path: path,
		log:  log,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the queue file location.
func (s *Store) Path() string { return s.path }

// Load reads the persisted queue. A missing file is an empty queue;
// malformed content is a propagated error, never silently healed.
func (s *Store) Load() (Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("queue: lock %s: %w", s.lock.Path(), err)
	}
	defer s.unlock()
	return s.loadLocked()
}

// Save atomically replaces the persisted snapshot with q.
func (s *Store) Save(q Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("queue: lock %s: %w", s.lock.Path(), err)
	}
	defer s.unlock()
	return s.saveLocked(q)
}

// Append assigns the next free id to a post with the given title and
// text and persists it at the tail of the queue.
func (s *Store) Append(title, text string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return Post{}, fmt.Errorf("queue: lock %s: %w", s.lock.Path(), err)
	}
	defer s.unlock()

	q, err := s.loadLocked()
	if err != nil {
		return Post{}, err
	}
	post := Post{
		ID:    q.NextID(),
		Title: title,
		Text:  text,
	}
	q = append(q, post)
	if err := s.saveLocked(q); err != nil {
		return Post{}, err
	}
	return post, nil
}

// MarkPublished flips the post's published flag and persists. The flag
// only ever transitions false to true. An unknown id still persists the
// (unchanged) snapshot and reports found=false; the caller decides
// whether that deserves a warning.
func (s *Store) MarkPublished(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return false, fmt.Errorf("queue: lock %s: %w", s.lock.Path(), err)
	}
	defer s.unlock()

	q, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	found := false
	for i := range q {
		if q[i].ID == id {
			q[i].Published = true
			found = true
			break
		}
	}
	if err := s.saveLocked(q); err != nil {
		return found, err
	}
	return found, nil
}

// NextUnpublished reads the current snapshot and returns the first
// unpublished post in insertion order.
func (s *Store) NextUnpublished() (Post, bool, error) {
	q, err := s.Load()
	if err != nil {
		return Post{}, false, err
	}
	p, ok := q.NextUnpublished()
	return p, ok, nil
}

// RecentTexts returns the texts of the most recent n text-bearing posts.
func (s *Store) RecentTexts(n int) ([]string, error) {
	q, err := s.Load()
	if err != nil {
		return nil, err
	}
	return q.RecentTexts(n), nil
}

// CountUnpublished returns the number of posts still waiting.
func (s *Store) CountUnpublished() (int, error) {
	q, err := s.Load()
	if err != nil {
		return 0, err
	}
	return q.CountUnpublished(), nil
}

func (s *Store) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.log.Warn("queue lock release failed", logx.String("path", s.lock.Path()), logx.Err(err))
	}
}

func (s *Store) loadLocked() (Queue, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Queue{}, nil
		}
		return nil, fmt.Errorf("queue: read %s: %w", s.path, err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return Queue{}, nil
	}
	var q Queue
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("queue: parse %s: %w", s.path, err)
	}
	return q, nil
}

// saveLocked writes the snapshot to a temp file in the same directory
// and renames it over the queue file, so concurrent readers never see a
// partial write.
func (s *Store) saveLocked(q Queue) error {
	if q == nil {
		q = Queue{}
	}
	b, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("queue: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("queue: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("queue: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("queue: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("queue: replace %s: %w", s.path, err)
	}
	return nil
}
