package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderNumberGenerator produces human readable order numbers.
type OrderNumberGenerator interface {
	Next(at time.Time) string
}

type uuidOrderNumbers struct{}

func NewOrderNumberGenerator() OrderNumberGenerator {
	return uuidOrderNumbers{}
}

// Next returns ORD-YYYYMMDD-XXXXXXXX using the UTC date of at.
func (uuidOrderNumbers) Next(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", at.UTC().Format("20060102"), suffix)
}
