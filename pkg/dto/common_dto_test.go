package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryNormalize(t *testing.T) {
	page, limit := PageQuery{}.Normalize()
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)

	page, limit = PageQuery{Page: 3, Limit: 500}.Normalize()
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 100, PageQuery{Page: 3, Limit: 500}.Offset())
}

func TestNewPaginationMeta(t *testing.T) {
	meta := NewPaginationMeta(PageQuery{Page: 1, Limit: 10}, 25, 10)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasMore)

	meta = NewPaginationMeta(PageQuery{Page: 3, Limit: 10}, 25, 5)
	assert.False(t, meta.HasMore)

	meta = NewPaginationMeta(PageQuery{}, 0, 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasMore)
}
