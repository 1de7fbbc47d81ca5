// Package pagination holds the page arithmetic shared by the API and the
// frontends.
package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxWindow is the most page links any view renders at once.
	MaxWindow = 5

	// MaxOffset bounds Offset so it fits the int4 range on every platform.
	MaxOffset = math.MaxInt32
)

// Pagination is the envelope returned next to every post list.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalPosts  int  `json:"totalPosts"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// Params is a validated page request.
type Params struct {
	Page  int
	Limit int
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// FromQuery reads page and limit from q. Missing, malformed or
// non-positive values fall back to the defaults; limit is capped. page is
// capped so Offset stays within MaxOffset; such a page is simply empty.
func FromQuery(q url.Values) Params {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if maxPage := MaxOffset/p.Limit + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// New computes the envelope for total rows under p.
func New(p Params, total int) Pagination {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		TotalPosts:  total,
		HasNext:     p.Page < totalPages,
		HasPrev:     p.Page > 1,
	}
}

// Window returns at most size page numbers around current, clamped to
// [1, totalPages]. The window slides so current stays centred when it can.
func Window(current, totalPages, size int) []int {
	if totalPages <= 0 || size <= 0 {
		return nil
	}
	if size > totalPages {
		size = totalPages
	}
	if current < 1 {
		current = 1
	}
	if current > totalPages {
		current = totalPages
	}
	start := current - size/2
	if start < 1 {
		start = 1
	}
	if start+size-1 > totalPages {
		start = totalPages - size + 1
	}
	pages := make([]int, size)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}

// AfterDelete is the page to show once a delete left itemsLeft items on
// page. An emptied page steps back one page; page 1 never moves.
func AfterDelete(page, itemsLeft int) int {
	if itemsLeft <= 0 && page > 1 {
		return page - 1
	}
	if page < 1 {
		return 1
	}
	return page
}
