package listview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

type fakeBackend struct {
	items    []domain.Initiative
	listErr  error
	writeErr error
	nextID   int
}

func (f *fakeBackend) ListInitiatives(ctx context.Context) ([]domain.Initiative, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	res := make([]domain.Initiative, len(f.items))
	copy(res, f.items)
	return res, nil
}

func (f *fakeBackend) CreateInitiative(ctx context.Context, draft domain.Initiative) (domain.Initiative, error) {
	if f.writeErr != nil {
		return domain.Initiative{}, f.writeErr
	}
	f.nextID++
	draft.ID = fmt.Sprintf("srv-%d", f.nextID)
	f.items = append(f.items, draft)
	return draft, nil
}

func (f *fakeBackend) UpdateInitiative(ctx context.Context, id string, fields map[string]any) (domain.Initiative, error) {
	if f.writeErr != nil {
		return domain.Initiative{}, f.writeErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			if title, ok := fields["title"].(string); ok {
				f.items[i].Title = title
			}
			return f.items[i], nil
		}
	}
	// Server-side record may exist even when the local mirror is stale.
	return domain.Initiative{ID: id}, nil
}

func (f *fakeBackend) DeleteInitiative(ctx context.Context, id string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func TestFetchAllReplacesCollection(t *testing.T) {
	b := &fakeBackend{items: []domain.Initiative{{ID: "1"}, {ID: "2"}}}
	s := NewStore(b)
	require.NoError(t, s.FetchAll(context.Background()))
	assert.Len(t, s.Records(), 2)
	assert.Empty(t, s.Err())
	assert.False(t, s.Loading())
}

func TestFetchFailureKeepsPriorRecords(t *testing.T) {
	b := &fakeBackend{items: []domain.Initiative{{ID: "1"}}}
	s := NewStore(b)
	require.NoError(t, s.FetchAll(context.Background()))

	b.listErr = errors.New("backend unavailable")
	err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.Len(t, s.Records(), 1)
	assert.Equal(t, "backend unavailable", s.Err())
}

func TestCreateAppendsServerRecord(t *testing.T) {
	b := &fakeBackend{}
	s := NewStore(b)
	created, err := s.Create(context.Background(), domain.Initiative{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	require.Len(t, s.Records(), 1)
	assert.Equal(t, "srv-1", s.Records()[0].ID)
}

func TestCreateFailureLeavesCollectionUnchanged(t *testing.T) {
	b := &fakeBackend{writeErr: errors.New("boom")}
	s := NewStore(b)
	_, err := s.Create(context.Background(), domain.Initiative{Title: "New"})
	require.Error(t, err)
	assert.Empty(t, s.Records())
}

func TestUpdateReplacesInPlace(t *testing.T) {
	b := &fakeBackend{items: []domain.Initiative{{ID: "1", Title: "Old"}, {ID: "2"}}}
	s := NewStore(b)
	require.NoError(t, s.FetchAll(context.Background()))

	updated, err := s.Update(context.Background(), "1", map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "New", s.Records()[0].Title)
	assert.Equal(t, "2", s.Records()[1].ID)
}

func TestUpdateLocallyAbsentIsNoOp(t *testing.T) {
	b := &fakeBackend{}
	s := NewStore(b)
	_, err := s.Update(context.Background(), "ghost", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.Empty(t, s.Records())
}

func TestLookupIsLocal(t *testing.T) {
	b := &fakeBackend{items: []domain.Initiative{{ID: "1", Title: "One"}}}
	s := NewStore(b)
	require.NoError(t, s.FetchAll(context.Background()))

	b.listErr = errors.New("offline")
	got, ok := s.Lookup("1")
	assert.True(t, ok)
	assert.Equal(t, "One", got.Title)
	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestRemoveShrinksVisibleSlice(t *testing.T) {
	var items []domain.Initiative
	for i := 0; i < 11; i++ {
		items = append(items, domain.Initiative{ID: fmt.Sprintf("r%02d", i), Title: "x"})
	}
	b := &fakeBackend{items: items}
	s := NewStore(b)
	require.NoError(t, s.FetchAll(context.Background()))

	st := NewState()
	st.SetSort(SortPatch{Field: String("id"), Direction: String("asc")})
	res := Apply(s.Records(), st)
	require.Len(t, res.Page, 10)
	assert.Equal(t, 11, st.Pagination.Total)

	require.NoError(t, s.Remove(context.Background(), "r03"))
	res = Apply(s.Records(), st)
	assert.Equal(t, 10, st.Pagination.Total)
	assert.NotContains(t, ids(res.Page), "r03")
	// The page refills from later records.
	assert.Contains(t, ids(res.Page), "r10")
	assert.Equal(t, 1, res.TotalPages)
}
