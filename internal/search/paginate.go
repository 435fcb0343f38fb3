// Package search implements the client side of the public office-hours
// search: debounced queries, stale response suppression and pagination.
package search

// DefaultPerPage is used when a non-positive page size is requested.
const DefaultPerPage = 5

// Page is one 1-based page of a result list.
type Page[T any] struct {
	Items      []T
	Number     int
	PerPage    int
	Total      int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }

// Paginate slices items into page number (1-based). A page outside
// [1, TotalPages] yields no items. Items is never nil.
func Paginate[T any](items []T, number, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(items)
	p := Page[T]{
		Items:      []T{},
		Number:     number,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	if number < 1 || number > p.TotalPages {
		return p
	}

	first := (number - 1) * perPage
	last := min(first+perPage, total)
	p.Items = items[first:last:last]
	return p
}
