package listview

// Filters holds the user-controlled list constraints. Zero values mean
// "no constraint".
type Filters struct {
	Search     string `json:"search"`
	Stage      string `json:"stage,omitempty"`
	Department string `json:"department,omitempty"`
	Risk       string `json:"risk,omitempty"`
}

// FilterPatch merges into Filters; nil fields are left untouched.
type FilterPatch struct {
	Search     *string
	Stage      *string
	Department *string
	Risk       *string
}

// Sort holds the single active sort key and direction.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction" enum:"asc,desc"`
}

type SortPatch struct {
	Field     *string
	Direction *string
}

// Pagination is the cursor over the filtered set. Total tracks the filtered
// count, not the raw record count.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

type PaginationPatch struct {
	Page     *int
	PageSize *int
}

// PageSizes are the page sizes the list controls offer.
var PageSizes = []int{10, 25, 50}

// State bundles filter, sort, and pagination state for one list view. It is
// meant to be owned by a single goroutine (the UI event loop); it is not
// safe for concurrent mutation.
type State struct {
	Filters    Filters
	Sort       Sort
	Pagination Pagination
}

// NewState returns the default state: no filters, updated_at descending,
// first page of ten.
func NewState() *State {
	return &State{
		Sort:       Sort{Field: "updated_at", Direction: "desc"},
		Pagination: Pagination{Page: 1, PageSize: 10},
	}
}

// SetFilters merges the patch and resets the page to 1. PageSize and sort
// are never touched.
func (s *State) SetFilters(p FilterPatch) {
	if p.Search != nil {
		s.Filters.Search = *p.Search
	}
	if p.Stage != nil {
		s.Filters.Stage = *p.Stage
	}
	if p.Department != nil {
		s.Filters.Department = *p.Department
	}
	if p.Risk != nil {
		s.Filters.Risk = *p.Risk
	}
	s.Pagination.Page = 1
}

// SetSort merges the patch and resets the page to 1.
func (s *State) SetSort(p SortPatch) {
	if p.Field != nil {
		s.Sort.Field = *p.Field
	}
	if p.Direction != nil {
		s.Sort.Direction = *p.Direction
	}
	s.Pagination.Page = 1
}

// SetPagination merges the patch without resetting anything else. Callers
// changing the page size reset the page explicitly if they want to.
func (s *State) SetPagination(p PaginationPatch) {
	if p.Page != nil {
		s.Pagination.Page = *p.Page
	}
	if p.PageSize != nil {
		s.Pagination.PageSize = *p.PageSize
	}
}

// ClearFilters resets filters to defaults and the page to 1. Sort state is
// preserved.
func (s *State) ClearFilters() {
	s.Filters = Filters{}
	s.Pagination.Page = 1
}

// String and Int build patch fields inline.
func String(v string) *string { return &v }

func Int(v int) *int { return &v }
