package models

import "math"

// Pagination describes one page of a listing. Page numbers start at 1.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// NewPagination clamps out-of-range input: pages below 1 become 1, a
// non-positive page size falls back to defaultPerPage, and the page is
// capped so that its offset still fits in an int.
func NewPagination(page, perPage, defaultPerPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage <= 0 {
		perPage = 1
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset returns the number of rows to skip before this page. It never goes
// negative and saturates at math.MaxInt.
func (p Pagination) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// Pages returns the number of pages needed to show Total items.
func (p Pagination) Pages() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

func (p Pagination) HasNext() bool {
	return p.Page < p.Pages()
}
