// Package paging slices ordered lists into fixed-size pages.
package paging

// Page is one slice of a paginated list. Index is zero-based.
type Page[T any] struct {
	Items      []T
	Index      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Paginate returns page number page of items. Out-of-range pages are clamped so a stale
// page number always lands on a real page; an empty list is a single empty page.
// A pageSize below 1 is treated as 1.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	total := max((len(items)+pageSize-1)/pageSize, 1)
	page = min(max(page, 0), total-1)

	start := min(page*pageSize, len(items))
	end := min(start+pageSize, len(items))

	return Page[T]{
		Items:      items[start:end:end],
		Index:      page,
		TotalPages: total,
		HasPrev:    page > 0,
		HasNext:    page < total-1,
	}
}
