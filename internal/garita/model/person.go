package model

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryWorker    Category = "worker"
	CategoryVisitor   Category = "visitor"
	CategoryGuard     Category = "guard"
	CategorySupplier  Category = "supplier"
	CategorySynthetic Category = "synthetic"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWorker, CategoryVisitor, CategoryGuard, CategorySupplier, CategorySynthetic:
		return true
	}
	return false
}

// Person is keyed by national ID (DNI). Format checks belong to the identity
// collaborator, not to this package.
type Person struct {
	DNI       string
	Name      string
	Category  Category
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeDNI trims whitespace. An empty result means the DNI is missing.
func NormalizeDNI(dni string) string {
	return strings.TrimSpace(dni)
}
