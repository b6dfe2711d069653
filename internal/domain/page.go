package domain

// PaginationParams carries page/limit values from the HTTP layer to the
// search results. Page is 1-indexed. Limit is capped at 100.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams builds a PaginationParams from optional query params.
// Nil pointers fall back to page=1, limit=20.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: 20}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, 100)
	}
	return p
}

// Offset returns the zero-based index of the first item on the page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window returns the slice of trips that falls on page p.
// Pages past the end yield an empty, non-nil slice.
func (p PaginationParams) Window(trips []Trip) []Trip {
	start := p.Offset()
	if start >= len(trips) {
		return []Trip{}
	}
	end := min(start+p.Limit, len(trips))
	return trips[start:end]
}
