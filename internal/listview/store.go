package listview

import (
	"context"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

// Backend is the remote collaborator the Store mirrors. The SDK client
// satisfies it.
type Backend interface {
	ListInitiatives(ctx context.Context) ([]domain.Initiative, error)
	CreateInitiative(ctx context.Context, draft domain.Initiative) (domain.Initiative, error)
	UpdateInitiative(ctx context.Context, id string, fields map[string]any) (domain.Initiative, error)
	DeleteInitiative(ctx context.Context, id string) error
}

// Store is the in-memory source of truth the pipeline reads. It mirrors the
// backend: mutations go remote first and apply locally only on success.
// Like State, it belongs to a single goroutine and is not safe for
// concurrent use.
type Store struct {
	Backend Backend

	records []domain.Initiative
	loading bool
	lastErr string
}

func NewStore(b Backend) *Store {
	return &Store{Backend: b}
}

// Records returns the current collection. Callers must not mutate it.
func (s *Store) Records() []domain.Initiative { return s.records }

// Loading reports whether a FetchAll is in flight.
func (s *Store) Loading() bool { return s.loading }

// Err returns the last fetch error message, empty after a successful fetch.
func (s *Store) Err() string { return s.lastErr }

// FetchAll replaces the collection with the backend's listing. On failure
// the prior collection is kept so the list keeps rendering last-known-good
// data.
func (s *Store) FetchAll(ctx context.Context) error {
	s.loading = true
	defer func() { s.loading = false }()
	items, err := s.Backend.ListInitiatives(ctx)
	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.lastErr = ""
	s.records = items
	return nil
}

// Create sends the draft to the backend and appends the server-assigned
// record on success. Nothing is committed on failure.
func (s *Store) Create(ctx context.Context, draft domain.Initiative) (domain.Initiative, error) {
	created, err := s.Backend.CreateInitiative(ctx, draft)
	if err != nil {
		return domain.Initiative{}, err
	}
	s.records = append(s.records, created)
	return created, nil
}

// Update sends the partial update and replaces the matching record in
// place. The update is still sent when the record is locally absent; the
// local replace then becomes a no-op.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (domain.Initiative, error) {
	updated, err := s.Backend.UpdateInitiative(ctx, id, fields)
	if err != nil {
		return domain.Initiative{}, err
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i] = updated
			break
		}
	}
	return updated, nil
}

// Remove deletes remotely then drops the record from the collection.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.Backend.DeleteInitiative(ctx, id); err != nil {
		return err
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return nil
}

// Lookup returns the record by id without touching the network.
func (s *Store) Lookup(id string) (domain.Initiative, bool) {
	for _, in := range s.records {
		if in.ID == id {
			return in, true
		}
	}
	return domain.Initiative{}, false
}
