package listview

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

func initiative(id, title, stage string) domain.Initiative {
	return domain.Initiative{
		ID:        id,
		Title:     title,
		Stage:     stage,
		Status:    "active",
		CreatedAt: "2025-01-01T00:00:00Z",
		UpdatedAt: "2025-01-01T00:00:00Z",
	}
}

func TestFilterSearchAcrossFields(t *testing.T) {
	records := []domain.Initiative{
		{ID: "1", Title: "Sepsis Detection"},
		{ID: "2", Title: "Radiology Screening"},
		{ID: "3", Title: "Scheduling", Goal: "reduce sepsis mortality"},
		{ID: "4", Title: "Billing", ProgramOwner: "Dr. Sepulveda"},
	}
	got := Filter(records, Filters{Search: "SEPSIS"})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestFilterMissingFieldNonMatching(t *testing.T) {
	// Absent fields must not match, but must not exclude the record when
	// another field matches either.
	records := []domain.Initiative{
		{ID: "1", Title: "", Goal: "automate triage"},
		{ID: "2", Title: "Triage Bot"},
	}
	got := Filter(records, Filters{Search: "triage"})
	assert.Len(t, got, 2)
}

func TestFilterStageExact(t *testing.T) {
	records := []domain.Initiative{
		initiative("1", "a", "idea"),
		initiative("2", "b", "proposal"),
		initiative("3", "c", "pilot"),
		initiative("4", "d", "production"),
		initiative("5", "e", "retired"),
	}
	got := Filter(records, Filters{Stage: "pilot"})
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
}

func TestFilterRiskSubstring(t *testing.T) {
	records := []domain.Initiative{
		{ID: "1", Risks: "High risk of model drift"},
		{ID: "2", Risks: "low operational impact"},
		{ID: "3"},
	}
	got := Filter(records, Filters{Risk: "high"})
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestFilterAllConstraintsAnd(t *testing.T) {
	records := []domain.Initiative{
		{ID: "1", Title: "Sepsis Alert", Department: "ICU", Stage: "pilot", Risks: "high"},
		{ID: "2", Title: "Sepsis Alert", Department: "ICU", Stage: "idea", Risks: "high"},
		{ID: "3", Title: "Sepsis Alert", Department: "ED", Stage: "pilot", Risks: "high"},
	}
	got := Filter(records, Filters{Search: "sepsis", Department: "ICU", Stage: "pilot", Risk: "high"})
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestOrderStable(t *testing.T) {
	records := []domain.Initiative{
		{ID: "a", Department: "ICU"},
		{ID: "b", Department: "ICU"},
		{ID: "c", Department: "ED"},
		{ID: "d", Department: "ICU"},
	}
	asc := Order(records, Sort{Field: "department", Direction: "asc"})
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(asc))
	desc := Order(records, Sort{Field: "department", Direction: "desc"})
	// Equal-comparing records keep their input order in both directions.
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids(desc))
}

func TestOrderMissingValueComparesEqual(t *testing.T) {
	records := []domain.Initiative{
		{ID: "a", ProgramOwner: ""},
		{ID: "b", ProgramOwner: "Zed"},
		{ID: "c", ProgramOwner: ""},
		{ID: "d", ProgramOwner: "Ann"},
	}
	got := Order(records, Sort{Field: "program_owner", Direction: "asc"})
	// a and c compare equal to everything they meet, so only b/d reorder.
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
}

func TestOrderByStageRank(t *testing.T) {
	records := []domain.Initiative{
		initiative("1", "a", "retired"),
		initiative("2", "b", "idea"),
		initiative("3", "c", "production"),
		initiative("4", "d", "proposal"),
		initiative("5", "e", "pilot"),
	}
	got := Order(records, Sort{Field: "stage", Direction: "asc"})
	assert.Equal(t, []string{"2", "4", "5", "3", "1"}, ids(got))
}

func TestPaginateSlices(t *testing.T) {
	var records []domain.Initiative
	for i := 0; i < 12; i++ {
		records = append(records, domain.Initiative{ID: fmt.Sprintf("r%02d", i)})
	}
	page1 := Paginate(records, Pagination{Page: 1, PageSize: 10})
	require.Len(t, page1, 10)
	assert.Equal(t, "r00", page1[0].ID)
	page2 := Paginate(records, Pagination{Page: 2, PageSize: 10})
	require.Len(t, page2, 2)
	assert.Equal(t, "r10", page2[0].ID)
	assert.Empty(t, Paginate(records, Pagination{Page: 3, PageSize: 10}))
	assert.Empty(t, Paginate(records, Pagination{Page: 0, PageSize: 10}))
	assert.Empty(t, Paginate(records, Pagination{Page: 1, PageSize: 0}))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestApplyRecordsFilteredTotal(t *testing.T) {
	records := []domain.Initiative{
		initiative("1", "a", "idea"),
		initiative("2", "b", "pilot"),
		initiative("3", "c", "pilot"),
	}
	st := NewState()
	st.SetFilters(FilterPatch{Stage: String("pilot")})
	res := Apply(records, st)
	assert.Len(t, res.Filtered, 2)
	assert.Equal(t, 2, st.Pagination.Total)
	assert.Equal(t, 1, res.TotalPages)
}

func TestApplyDefaultSortUpdatedAtDesc(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var records []domain.Initiative
	for i := 0; i < 12; i++ {
		records = append(records, domain.Initiative{
			ID:        fmt.Sprintf("r%02d", i),
			Title:     "x",
			UpdatedAt: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		})
	}
	st := NewState()
	res := Apply(records, st)
	require.Len(t, res.Page, 10)
	assert.Equal(t, "r11", res.Page[0].ID)
	assert.Equal(t, "r02", res.Page[9].ID)
	assert.Equal(t, 2, res.TotalPages)

	st.SetPagination(PaginationPatch{Page: Int(2)})
	res = Apply(records, st)
	require.Len(t, res.Page, 2)
	assert.Equal(t, "r01", res.Page[0].ID)
	assert.Equal(t, "r00", res.Page[1].ID)
}

func TestApplyIdempotent(t *testing.T) {
	records := []domain.Initiative{
		initiative("1", "b", "idea"),
		initiative("2", "a", "pilot"),
	}
	st := NewState()
	st.SetSort(SortPatch{Field: String("title"), Direction: String("asc")})
	first := Apply(records, st)
	second := Apply(records, st)
	assert.Equal(t, first, second)
}

func TestSetFiltersResetsPage(t *testing.T) {
	st := NewState()
	st.SetPagination(PaginationPatch{Page: Int(3)})
	st.SetFilters(FilterPatch{Search: String("x")})
	assert.Equal(t, 1, st.Pagination.Page)

	st.SetPagination(PaginationPatch{Page: Int(3)})
	st.SetSort(SortPatch{Field: String("title")})
	assert.Equal(t, 1, st.Pagination.Page)
}

func TestSetPaginationMergesOnly(t *testing.T) {
	st := NewState()
	st.SetFilters(FilterPatch{Search: String("x")})
	st.SetPagination(PaginationPatch{Page: Int(2), PageSize: Int(25)})
	assert.Equal(t, 2, st.Pagination.Page)
	assert.Equal(t, 25, st.Pagination.PageSize)
	assert.Equal(t, "x", st.Filters.Search)
}

func TestClearFiltersKeepsSort(t *testing.T) {
	st := NewState()
	st.SetSort(SortPatch{Field: String("title"), Direction: String("asc")})
	st.SetFilters(FilterPatch{Search: String("x"), Stage: String("pilot")})
	st.SetPagination(PaginationPatch{Page: Int(2)})
	st.ClearFilters()
	assert.Equal(t, Filters{}, st.Filters)
	assert.Equal(t, 1, st.Pagination.Page)
	assert.Equal(t, Sort{Field: "title", Direction: "asc"}, st.Sort)
}

func TestSetFiltersNeverResetsPageSize(t *testing.T) {
	st := NewState()
	st.SetPagination(PaginationPatch{PageSize: Int(50)})
	st.SetFilters(FilterPatch{Search: String("x")})
	assert.Equal(t, 50, st.Pagination.PageSize)
}

func ids(records []domain.Initiative) []string {
	res := make([]string, 0, len(records))
	for _, r := range records {
		res = append(res, r.ID)
	}
	return res
}
