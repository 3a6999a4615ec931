package store

import "github.com/edgemesh/edge-sync/domain"

// PageOf assembles one page of query results together with the
// pagination metadata derived from the total row count.
func PageOf[T any](data []T, link domain.PageLink, total int64) domain.PageData[T] {
	totalPages := 0
	if link.PageSize > 0 {
		totalPages = int((total + int64(link.PageSize) - 1) / int64(link.PageSize))
	}
	return domain.PageData[T]{
		Data:          data,
		TotalPages:    totalPages,
		TotalElements: total,
		HasNext:       link.Page+1 < totalPages,
	}
}
