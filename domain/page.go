package domain

// PageLink addresses one page of a listing query.
type PageLink struct {
	Page     int
	PageSize int
}

// Next returns the link of the following page.
func (p PageLink) Next() PageLink {
	return PageLink{Page: p.Page + 1, PageSize: p.PageSize}
}

// TimePageLink addresses one page of a time-bounded query. A zero
// StartTime or EndTime leaves the corresponding bound open. Times are
// epoch milliseconds.
type TimePageLink struct {
	PageLink
	StartTime int64
	EndTime   int64
}

// PageData is one bounded page of query results.
type PageData[T any] struct {
	Data          []T
	TotalPages    int
	TotalElements int64
	HasNext       bool
}

// EmptyPage returns a terminal page with no data.
func EmptyPage[T any]() PageData[T] {
	return PageData[T]{Data: []T{}}
}

// SinglePage wraps data that has no natural pagination into one
// terminal page.
func SinglePage[T any](data []T) PageData[T] {
	return PageData[T]{
		Data:          data,
		TotalPages:    1,
		TotalElements: int64(len(data)),
	}
}
