package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderNumberFormat(t *testing.T) {
	gen := NewOrderNumberGenerator()
	at := time.Date(2024, 7, 9, 23, 30, 0, 0, time.FixedZone("UTC+7", 7*3600))

	number := gen.Next(at)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20240709-[0-9A-F]{8}$`), number)
	assert.NotEqual(t, number, gen.Next(at))
}
