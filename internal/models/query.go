package models

// ListQuery is the parameter set of a list fetch.
type ListQuery struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Search   string `json:"search"`
	Filter   string `json:"filter,omitempty"`
}

// ListResult is a decoded list page. SearchCount is set when the backend
// reports how many records matched the search term.
type ListResult[T any] struct {
	Items       []T
	TotalCount  int
	SearchCount *int
}

// Total returns the count that drives pagination for the given search term.
func (r ListResult[T]) Total(search string) int {
	if search != "" && r.SearchCount != nil {
		return *r.SearchCount
	}
	return r.TotalCount
}

// TotalPages returns max(1, ceil(total/pageSize)).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// NewPagination derives the pagination block for a page.
func NewPagination(page, pageSize, total int) Pagination {
	pages := TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    page < pages,
	}
}
