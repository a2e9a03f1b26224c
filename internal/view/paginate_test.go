package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		page      int
		size      int
		wantItems []int
		wantPage  int
		wantPages int
		wantSize  int
	}{
		{"first page", 25, 1, 10, seq(10), 1, 3, 10},
		{"last partial page", 25, 3, 10, []int{21, 22, 23, 24, 25}, 3, 3, 10},
		{"page past end clamps", 25, 9, 10, []int{21, 22, 23, 24, 25}, 3, 3, 10},
		{"page zero clamps", 5, 0, 10, seq(5), 1, 1, 10},
		{"default size", 12, 1, 0, seq(10), 1, 2, 10},
		{"size cap", 150, 1, 1000, seq(100), 1, 2, 100},
		{"empty input", 0, 4, 10, []int{}, 1, 1, 10},
		{"exact multiple", 20, 2, 10, []int{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, 2, 2, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(seq(tt.n), tt.page, tt.size)
			assert.Equal(t, tt.wantItems, p.Items)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantSize, p.Size)
			assert.Equal(t, tt.n, p.TotalItems)
		})
	}
}

func TestPaginateDoesNotAlias(t *testing.T) {
	src := seq(5)
	p := Paginate(src, 1, 10)
	p.Items[0] = 99
	assert.Equal(t, 1, src[0])
}

func TestPageNavigation(t *testing.T) {
	p := Paginate(seq(25), 2, 10)
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrev())

	p = Paginate(seq(5), 1, 10)
	assert.False(t, p.HasNext())
	assert.False(t, p.HasPrev())
}

func TestFilter(t *testing.T) {
	even := func(v int) bool { return v%2 == 0 }
	assert.Equal(t, []int{2, 4, 6}, Filter(seq(6), even))
	assert.Empty(t, Filter(nil, even))

	big := func(v int) bool { return v > 3 }
	assert.Equal(t, []int{4, 6}, Filter(seq(6), All(even, nil, big)))
}
