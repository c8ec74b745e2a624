package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryStatePageStaysInRange(t *testing.T) {
	totals := []int{0, 1, 9, 10, 11, 23, 100}
	for _, total := range totals {
		q := NewQueryState(10, "")
		q.ApplyTotal(total)
		pages := q.TotalPages()

		for _, target := range []int{-1, 0, 1, 2, 3, pages, pages + 1, 50} {
			q.SetPage(target)
			assert.GreaterOrEqual(t, q.Page(), 1, "total=%d target=%d", total, target)
			assert.LessOrEqual(t, q.Page(), pages, "total=%d target=%d", total, target)
		}
		for i := 0; i < pages+2; i++ {
			q.NextPage()
		}
		assert.Equal(t, pages, q.Page())
		for i := 0; i < pages+2; i++ {
			q.PreviousPage()
		}
		assert.Equal(t, 1, q.Page())
	}
}

func TestQueryStateTotalPages(t *testing.T) {
	q := NewQueryState(10, "")
	assert.Equal(t, 1, q.TotalPages())
	q.ApplyTotal(23)
	assert.Equal(t, 3, q.TotalPages())
	q.ApplyTotal(30)
	assert.Equal(t, 3, q.TotalPages())
}

func TestQueryStateSetPageOutOfRangeIsIgnored(t *testing.T) {
	q := NewQueryState(10, "")
	q.ApplyTotal(23)
	assert.True(t, q.SetPage(2))
	assert.False(t, q.SetPage(4))
	assert.False(t, q.SetPage(0))
	assert.False(t, q.SetPage(2))
	assert.Equal(t, 2, q.Page())
}

func TestQueryStateSearchAndFilterResetPage(t *testing.T) {
	q := NewQueryState(10, "")
	q.ApplyTotal(50)
	q.SetPage(4)
	q.SetSearch("red cross")
	assert.Equal(t, 1, q.Page())
	assert.Equal(t, "red cross", q.Query().Search)

	q.SetPage(3)
	q.SetFilter("active")
	assert.Equal(t, 1, q.Page())
	assert.Equal(t, "active", q.Query().Filter)
}

func TestQueryStateApplyTotalClampsPage(t *testing.T) {
	q := NewQueryState(10, "")
	q.ApplyTotal(45)
	q.SetPage(5)

	assert.True(t, q.ApplyTotal(12))
	assert.Equal(t, 2, q.Page())
	assert.False(t, q.ApplyTotal(15))

	assert.True(t, q.ApplyTotal(0))
	assert.Equal(t, 1, q.Page())
	assert.Equal(t, 1, q.TotalPages())
}

func TestQueryStatePagination(t *testing.T) {
	q := NewQueryState(10, "")
	q.ApplyTotal(23)
	q.SetPage(2)
	p := q.Pagination()
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 23, p.TotalCount)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)
}
