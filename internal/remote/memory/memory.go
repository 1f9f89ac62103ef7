// Package memory is an in-process remote note service. It keeps a change
// log so cursors behave like the real service, rejects stale versions, and
// fills in publish URLs asynchronously (on the next List) the way the real
// service does.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/remote"
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for modification dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithoutPublishing makes the service ignore publish requests, so publish
// URLs never appear.
func WithoutPublishing() Option {
	return func(s *Service) { s.publishing = false }
}

// WithPublishBaseURL sets the prefix of generated publish URLs.
func WithPublishBaseURL(base string) Option {
	return func(s *Service) { s.publishBase = strings.TrimSuffix(base, "/") }
}

type record struct {
	entry remote.Entry
	seq   int
}

// Service implements remote.Service in memory. It is safe for concurrent use.
type Service struct {
	mu          sync.Mutex
	records     map[string]*record
	seq         int
	now         func() time.Time
	publishing  bool
	publishBase string
	failNext    error
	updates     int
}

var _ remote.Service = (*Service)(nil)

// New creates an empty service.
func New(opts ...Option) *Service {
	s := &Service{
		records:     make(map[string]*record),
		now:         time.Now,
		publishing:  true,
		publishBase: "https://notes.example/p",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call return err.
func (s *Service) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Updates returns how many Update calls succeeded.
func (s *Service) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Keys returns the keys of all stored entries, sorted.
func (s *Service) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *Service) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *Service) touch(r *record) {
	s.seq++
	r.seq = s.seq
}

// List returns entries changed after cursor.
func (s *Service) List(_ context.Context, cursor string) ([]remote.Entry, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, "", err
	}

	since := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("memory: bad cursor %q", cursor)
		}
		since = n
	}

	s.settlePublishing()

	var out []remote.Entry
	for _, r := range s.records {
		if r.seq > since {
			out = append(out, clone(r.entry))
		}
	}
	slices.SortFunc(out, func(a, b remote.Entry) int { return strings.Compare(a.Key, b.Key) })
	return out, strconv.Itoa(s.seq), nil
}

// settlePublishing applies publish state changes requested since the
// previous List, as a new revision of each affected entry.
func (s *Service) settlePublishing() {
	if !s.publishing {
		return
	}
	for key, r := range s.records {
		wants := slices.Contains(r.entry.SystemTags, models.SystemTagPublished) && !r.entry.Deleted
		switch {
		case wants && r.entry.PublishURL == "":
			r.entry.PublishURL = s.publishBase + "/" + key[:min(len(key), 8)]
		case !wants && r.entry.PublishURL != "":
			r.entry.PublishURL = ""
		default:
			continue
		}
		r.entry.Version++
		s.touch(r)
	}
}

// Get returns one entry.
func (s *Service) Get(_ context.Context, key string) (remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return remote.Entry{}, err
	}
	r, ok := s.records[key]
	if !ok {
		return remote.Entry{}, fmt.Errorf("memory: get %s: %w", key, apperr.ErrNotFound)
	}
	return clone(r.entry), nil
}

// Update creates or updates an entry.
func (s *Service) Update(_ context.Context, e remote.Entry) (remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return remote.Entry{}, err
	}

	e = clone(e)
	if e.Modified == 0 {
		e.Modified = s.now().Unix()
	}

	if e.Key == "" {
		e.Key = strings.ReplaceAll(uuid.NewString(), "-", "")
		if e.Created == 0 {
			e.Created = e.Modified
		}
		e.Version = 1
		r := &record{entry: e}
		s.records[e.Key] = r
		s.touch(r)
		s.updates++
		return clone(e), nil
	}

	r, ok := s.records[e.Key]
	if !ok {
		return remote.Entry{}, fmt.Errorf("memory: update %s: %w", e.Key, apperr.ErrNotFound)
	}
	if e.Version != r.entry.Version {
		return remote.Entry{}, fmt.Errorf("memory: update %s at version %d (current %d): %w",
			e.Key, e.Version, r.entry.Version, apperr.ErrConflict)
	}
	// Server-managed fields survive client updates.
	e.PublishURL = r.entry.PublishURL
	e.ShareURL = r.entry.ShareURL
	if e.Created == 0 {
		e.Created = r.entry.Created
	}
	e.Version = r.entry.Version + 1
	r.entry = e
	s.touch(r)
	s.updates++
	return clone(e), nil
}

// Trash marks an entry deleted.
func (s *Service) Trash(_ context.Context, key string) (remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return remote.Entry{}, err
	}
	r, ok := s.records[key]
	if !ok {
		return remote.Entry{}, fmt.Errorf("memory: trash %s: %w", key, apperr.ErrNotFound)
	}
	r.entry.Deleted = true
	r.entry.Version++
	r.entry.Modified = s.now().Unix()
	s.touch(r)
	return clone(r.entry), nil
}

// Delete removes an entry permanently.
func (s *Service) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("memory: delete %s: %w", key, apperr.ErrNotFound)
	}
	delete(s.records, key)
	return nil
}

func clone(e remote.Entry) remote.Entry {
	e.Tags = slices.Clone(e.Tags)
	e.SystemTags = slices.Clone(e.SystemTags)
	return e
}
