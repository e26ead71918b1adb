package feed

import (
	"math"
	"strconv"
	"strings"

	"vidtube/internal/storage"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (Page-1)*MaxLimit within int.
	MaxPage      = math.MaxInt / MaxLimit
)

// PageRequest is a 1-based page of at most Limit rows.
type PageRequest struct {
	Page  int
	Limit int
}

// ParsePage reads page and limit query values. Empty, malformed or
// non-positive values fall back to the defaults. Limit is capped at
// MaxLimit and page at MaxPage.
func ParsePage(page, limit string) PageRequest {
	req := PageRequest{Page: DefaultPage, Limit: DefaultLimit}
	if n, ok := positiveInt(page); ok {
		req.Page = n
	}
	if n, ok := positiveInt(limit); ok {
		req.Limit = n
	}
	return req.normalize()
}

func positiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (p PageRequest) normalize() PageRequest {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Normalized applies the defaults and the limit cap to a PageRequest built
// outside ParsePage.
func (p PageRequest) Normalized() PageRequest {
	return p.normalize()
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	p = p.normalize()
	return (p.Page - 1) * p.Limit
}

// Window converts the page into a storage window.
func (p PageRequest) Window() storage.Window {
	p = p.normalize()
	return storage.Window{Offset: p.Offset(), Limit: p.Limit}
}
