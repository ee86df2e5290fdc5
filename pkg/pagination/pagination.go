package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps (Page-1)*Limit within int for any limit up to MaxLimit.
	MaxPage = math.MaxInt / MaxLimit
)

// Params holds page-based pagination, the scheme the clinic backend uses.
// Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts page and limit from the query string, clamping both.
func FromContext(c echo.Context) Params {
	return Normalize(atoi(c.QueryParam("page")), atoi(c.QueryParam("limit")))
}

// Normalize applies defaults and bounds to raw page/limit values.
func Normalize(page, limit int) Params {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Offset is the index of the first item of the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) slice bounds of the page within total items.
func (p Params) Window(total int) (int, int) {
	start := p.Offset()
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Limit < total
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"hasMore"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasMore: p.HasNext(total),
	}
}
