package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationParams(t *testing.T) {
	p := NewPaginationParams(0, 500)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 0, p.Offset)

	p = NewPaginationParams(3, 10)
	assert.Equal(t, 20, p.Offset)
}

func TestWindow(t *testing.T) {
	start, end := Window(5, 2, 1)
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)

	start, end = Window(5, 10, 4)
	assert.Equal(t, 4, start)
	assert.Equal(t, 5, end)

	start, end = Window(5, 2, 9)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)

	start, end = Window(3, 0, 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
}
