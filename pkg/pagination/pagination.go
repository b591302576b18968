package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, accepting the FHIR _count/_offset names too.
func FromContext(c echo.Context) Params {
	limit := firstInt(c, "limit", "_count")
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	offset := firstInt(c, "offset", "_offset")
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func firstInt(c echo.Context, names ...string) int {
	for _, name := range names {
		if n, err := strconv.Atoi(c.QueryParam(name)); err == nil && n != 0 {
			return n
		}
	}
	return 0
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+p.Limit < total,
	}
}
