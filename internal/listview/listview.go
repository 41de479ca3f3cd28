// Package listview implements the pure filter/sort/paginate pipeline behind
// the initiative list: a predicate over free-text and exact-match filters, a
// stable single-key sort, and slice pagination with a derived display
// summary. All steps are synchronous and side-effect free except that Apply
// records the filtered count on the caller's pagination state.
package listview

import (
	"sort"
	"strings"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

// Result carries the output of one pipeline run.
type Result struct {
	Filtered   []domain.Initiative
	Sorted     []domain.Initiative
	Page       []domain.Initiative
	TotalPages int
}

// Apply runs filter, sort, and paginate over records and updates
// st.Pagination.Total to the filtered count.
func Apply(records []domain.Initiative, st *State) Result {
	filtered := Filter(records, st.Filters)
	sorted := Order(filtered, st.Sort)
	st.Pagination.Total = len(sorted)
	return Result{
		Filtered:   filtered,
		Sorted:     sorted,
		Page:       Paginate(sorted, st.Pagination),
		TotalPages: TotalPages(len(sorted), st.Pagination.PageSize),
	}
}

// Match reports whether one record passes every active filter.
func Match(in domain.Initiative, f Filters) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !containsFold(in.Title, needle) &&
			!containsFold(in.ProgramOwner, needle) &&
			!containsFold(in.Department, needle) &&
			!containsFold(in.Background, needle) &&
			!containsFold(in.Goal, needle) {
			return false
		}
	}
	if f.Stage != "" && in.Stage != f.Stage {
		return false
	}
	if f.Department != "" && in.Department != f.Department {
		return false
	}
	if f.Risk != "" && !containsFold(in.Risks, strings.ToLower(f.Risk)) {
		return false
	}
	return true
}

// Filter returns the records passing Match, preserving input order.
func Filter(records []domain.Initiative, f Filters) []domain.Initiative {
	res := make([]domain.Initiative, 0, len(records))
	for _, in := range records {
		if Match(in, f) {
			res = append(res, in)
		}
	}
	return res
}

// Order stable-sorts a copy of records by the sort key. Records with a
// missing value for the key compare equal and keep their input order.
func Order(records []domain.Initiative, s Sort) []domain.Initiative {
	res := make([]domain.Initiative, len(records))
	copy(res, records)
	desc := s.Direction == "desc"
	sort.SliceStable(res, func(i, j int) bool {
		c := compareField(res[i], res[j], s.Field)
		if desc {
			c = -c
		}
		return c < 0
	})
	return res
}

// Paginate returns the slice for the current page, empty when the page is
// past the end. Out-of-range pages are tolerated, not rejected.
func Paginate(records []domain.Initiative, p Pagination) []domain.Initiative {
	if p.PageSize <= 0 || p.Page < 1 {
		return []domain.Initiative{}
	}
	start := (p.Page - 1) * p.PageSize
	if start >= len(records) {
		return []domain.Initiative{}
	}
	end := start + p.PageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// TotalPages is ceil(total/pageSize), 0 when the filtered set is empty.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func compareField(a, b domain.Initiative, field string) int {
	if field == "stage" {
		ra, rb := domain.StageRank(a.Stage), domain.StageRank(b.Stage)
		if ra < 0 || rb < 0 {
			return 0
		}
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		}
		return 0
	}
	va := fieldValue(a, field)
	vb := fieldValue(b, field)
	if va == "" || vb == "" {
		return 0
	}
	return strings.Compare(va, vb)
}

// fieldValue maps a sort key to the record's value. RFC 3339 timestamps
// order lexicographically, so string comparison covers them too.
func fieldValue(in domain.Initiative, field string) string {
	switch field {
	case "title":
		return in.Title
	case "program_owner":
		return in.ProgramOwner
	case "department":
		return in.Department
	case "background":
		return in.Background
	case "goal":
		return in.Goal
	case "risks":
		return in.Risks
	case "status":
		return in.Status
	case "created_by":
		return in.CreatedBy
	case "created_at":
		return in.CreatedAt
	case "updated_at":
		return in.UpdatedAt
	case "id":
		return in.ID
	default:
		return ""
	}
}

func containsFold(haystack, lowerNeedle string) bool {
	if haystack == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}
