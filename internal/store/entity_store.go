package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tips-service/internal/domain"
)

// minStep is added to the previous version's timestamp when the clock has not
// moved past it, so ModifiedAt strictly increases per entity.
const minStep = time.Microsecond

// EntityStore holds the current state and full history of one entity kind.
type EntityStore struct {
	kind   domain.Kind
	now    func() time.Time
	nextID atomic.Uint64

	mu      sync.RWMutex
	records map[uint64]*record
}

// record is the per-entity critical section. owner and createdAt never change.
type record struct {
	mu        sync.Mutex
	id        uint64
	owner     string
	createdAt time.Time
	// versions are kept oldest-first; the last element is the current state.
	versions []domain.Version
}

// Option configures an EntityStore.
type Option func(*EntityStore)

// WithClock overrides the time source used for version timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *EntityStore) {
		if now != nil {
			s.now = now
		}
	}
}

func New(kind domain.Kind, opts ...Option) *EntityStore {
	s := &EntityStore{
		kind:    kind,
		now:     time.Now,
		records: make(map[uint64]*record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EntityStore) Kind() domain.Kind {
	return s.kind
}

// Create allocates the next id and stores the initial version.
func (s *EntityStore) Create(owner, content string) domain.Entity {
	id := s.nextID.Add(1)
	now := s.now().UTC()

	rec := &record{
		id:        id,
		owner:     owner,
		createdAt: now,
		versions: []domain.Version{{
			Owner:      owner,
			Content:    content,
			ModifiedAt: now,
		}},
	}

	ent := rec.entity(s.kind)

	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()

	return ent
}

func (s *EntityStore) Get(id uint64) (domain.Entity, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.entity(s.kind), nil
}

// Exists reports whether id has been created.
func (s *EntityStore) Exists(id uint64) bool {
	_, ok := s.lookup(id)
	return ok
}

// Update replaces the content of id on behalf of requester. A missing id is
// reported as domain.ErrNotFound before ownership is considered.
func (s *EntityStore) Update(id uint64, requester, content string) (domain.Entity, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}
	if rec.owner != requester {
		return domain.Entity{}, domain.ErrForbidden
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := s.now().UTC()
	last := rec.versions[len(rec.versions)-1].ModifiedAt
	if !now.After(last) {
		now = last.Add(minStep)
	}
	rec.versions = append(rec.versions, domain.Version{
		Owner:      rec.owner,
		Content:    content,
		ModifiedAt: now,
	})
	return rec.entity(s.kind), nil
}

// History returns the versions of id, most recent first. The last element is
// the creation snapshot.
func (s *EntityStore) History(id uint64) ([]domain.Version, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	rec.mu.Lock()
	out := make([]domain.Version, len(rec.versions))
	for i, v := range rec.versions {
		out[len(out)-1-i] = v
	}
	rec.mu.Unlock()

	return out, nil
}

// ListAll returns snapshots of every entity ordered by creation time
// descending, ties broken by id descending.
func (s *EntityStore) ListAll() []domain.Entity {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]domain.Entity, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.entity(s.kind))
		rec.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Len returns the number of stored entities.
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *EntityStore) lookup(id uint64) (*record, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	return rec, ok
}

// entity must be called with r.mu held, except during construction.
func (r *record) entity(kind domain.Kind) domain.Entity {
	cur := r.versions[len(r.versions)-1]
	return domain.Entity{
		ID:         r.id,
		Kind:       kind,
		Owner:      r.owner,
		Content:    cur.Content,
		CreatedAt:  r.createdAt,
		ModifiedAt: cur.ModifiedAt,
	}
}
