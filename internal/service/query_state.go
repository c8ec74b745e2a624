package service

import "github.com/cdrp/console-gateway/internal/models"

// QueryState holds the list parameters of one screen together with the last
// known total, which bounds the page. It is not safe for concurrent use; the
// owning screen serialises access.
type QueryState struct {
	page     int
	pageSize int
	search   string
	filter   string
	total    int
}

// NewQueryState starts at page 1 with no search.
func NewQueryState(pageSize int, filter string) QueryState {
	if pageSize <= 0 {
		pageSize = 10
	}
	return QueryState{page: 1, pageSize: pageSize, filter: filter}
}

// Query returns the parameters of the next fetch.
func (q *QueryState) Query() models.ListQuery {
	return models.ListQuery{Page: q.page, PageSize: q.pageSize, Search: q.search, Filter: q.filter}
}

func (q *QueryState) Page() int       { return q.page }
func (q *QueryState) PageSize() int   { return q.pageSize }
func (q *QueryState) Search() string  { return q.search }
func (q *QueryState) Filter() string  { return q.filter }
func (q *QueryState) Total() int      { return q.total }
func (q *QueryState) TotalPages() int { return models.TotalPages(q.total, q.pageSize) }

// SetSearch replaces the search term and returns to page 1.
func (q *QueryState) SetSearch(term string) {
	q.search = term
	q.page = 1
}

// SetFilter replaces the filter and returns to page 1.
func (q *QueryState) SetFilter(value string) {
	q.filter = value
	q.page = 1
}

// SetPage moves to page n when 1 <= n <= TotalPages and reports whether the
// page changed.
func (q *QueryState) SetPage(n int) bool {
	if n < 1 || n > q.TotalPages() || n == q.page {
		return false
	}
	q.page = n
	return true
}

// NextPage advances one page unless already on the last one.
func (q *QueryState) NextPage() bool { return q.SetPage(q.page + 1) }

// PreviousPage goes back one page unless already on the first one.
func (q *QueryState) PreviousPage() bool { return q.SetPage(q.page - 1) }

// ApplyTotal records a new total and clamps the page into [1, TotalPages].
// It reports whether the page had to move.
func (q *QueryState) ApplyTotal(total int) bool {
	if total < 0 {
		total = 0
	}
	q.total = total
	pages := q.TotalPages()
	switch {
	case q.page > pages:
		q.page = pages
		return true
	case q.page < 1:
		q.page = 1
		return true
	}
	return false
}

// Pagination renders the pagination block.
func (q *QueryState) Pagination() models.Pagination {
	return models.NewPagination(q.page, q.pageSize, q.total)
}
