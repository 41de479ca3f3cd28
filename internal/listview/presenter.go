package listview

// Summary carries display-ready pagination values.
type Summary struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	StartItem  int `json:"start_item"`
	EndItem    int `json:"end_item"`
	Total      int `json:"total"`
}

// ControlsNeeded reports whether pagination controls should render at all.
func (s Summary) ControlsNeeded() bool { return s.TotalPages > 1 }

// Presenter derives pagination display values from a State and is the only
// place page numbers are range-checked.
type Presenter struct {
	State *State
}

// Summary computes the current page summary. StartItem and EndItem are only
// meaningful when Total > 0.
func (p Presenter) Summary() Summary {
	pg := p.State.Pagination
	totalPages := TotalPages(pg.Total, pg.PageSize)
	start := (pg.Page-1)*pg.PageSize + 1
	end := pg.Page * pg.PageSize
	if end > pg.Total {
		end = pg.Total
	}
	if pg.Total == 0 {
		start, end = 0, 0
	}
	return Summary{
		Page:       pg.Page,
		TotalPages: totalPages,
		StartItem:  start,
		EndItem:    end,
		Total:      pg.Total,
	}
}

// GoToPage clamps n into [1, totalPages] and navigates there. The pipeline
// itself tolerates out-of-range pages; this clamp is for user navigation.
func (p Presenter) GoToPage(n int) {
	totalPages := TotalPages(p.State.Pagination.Total, p.State.Pagination.PageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	if n < 1 {
		n = 1
	}
	if n > totalPages {
		n = totalPages
	}
	p.State.SetPagination(PaginationPatch{Page: &n})
}
