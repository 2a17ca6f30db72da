package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/constants"
)

// PaginationParams is a validated page request.
type PaginationParams struct {
	Page  int
	Limit int
}

// PaginationResponse is the pagination metadata attached to list responses.
type PaginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// GetPaginationParams reads page and limit from the query string. Malformed
// or out-of-range values fall back rather than erroring: the page floors at
// 1, the limit falls back to the default and is capped at the maximum.
func GetPaginationParams(c *gin.Context) PaginationParams {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultPageSize)))
	if err != nil || limit < 1 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	return PaginationParams{Page: page, Limit: limit}
}
