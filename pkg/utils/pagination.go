package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// NewPaginationParams normalizes a page/limit pair.
func NewPaginationParams(page, pageSize int) PaginationParams {
	if page <= 0 {
		page = 1
	}

	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

// GetPaginationParams extracts pagination parameters from request
func GetPaginationParams(c echo.Context) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("limit"))
	return NewPaginationParams(page, pageSize)
}

// Window returns the [start, end) bounds of a page over n items.
func Window(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	start := offset
	if start > n {
		start = n
	}
	end := n
	if limit > 0 && start+limit < n {
		end = start + limit
	}
	return start, end
}
