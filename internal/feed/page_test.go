package feed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	cases := []struct {
		name   string
		page   string
		limit  string
		want   PageRequest
		offset int
	}{
		{name: "defaults", want: PageRequest{Page: 1, Limit: 10}, offset: 0},
		{name: "explicit", page: "3", limit: "5", want: PageRequest{Page: 3, Limit: 5}, offset: 10},
		{name: "garbage", page: "abc", limit: "1.5", want: PageRequest{Page: 1, Limit: 10}, offset: 0},
		{name: "zero and negative", page: "0", limit: "-4", want: PageRequest{Page: 1, Limit: 10}, offset: 0},
		{name: "whitespace", page: " 2 ", limit: " 20", want: PageRequest{Page: 2, Limit: 20}, offset: 20},
		{name: "limit capped", page: "2", limit: "1000", want: PageRequest{Page: 2, Limit: MaxLimit}, offset: MaxLimit},
		{name: "page capped", page: "184467440737095517", limit: "100", want: PageRequest{Page: MaxPage, Limit: MaxLimit}, offset: (MaxPage - 1) * MaxLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePage(tc.page, tc.limit)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.offset, got.Offset())
		})
	}
}

func TestPageRequestZeroValueNormalizes(t *testing.T) {
	var req PageRequest
	window := req.Window()
	assert.Equal(t, 0, window.Offset)
	assert.Equal(t, DefaultLimit, window.Limit)
}

func TestFarPagesNeverWrapOffset(t *testing.T) {
	for _, req := range []PageRequest{
		{Page: MaxPage, Limit: MaxLimit},
		{Page: math.MaxInt, Limit: MaxLimit},
		{Page: math.MaxInt, Limit: 7},
	} {
		window := req.Window()
		assert.Positive(t, window.Offset, "page %d limit %d", req.Page, req.Limit)
		assert.LessOrEqual(t, req.Normalized().Page, MaxPage)
	}
}
