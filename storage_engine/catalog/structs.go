package catalog

import (
	"sync"

	"go.uber.org/zap"
)

type CatalogManager struct {
	path    string
	indexes map[IndexEntry]struct{}
	log     *zap.Logger
	mu      sync.Mutex
}

// IndexEntry names one declared secondary index.
type IndexEntry struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

type catalogFile struct {
	Indexes []IndexEntry `json:"indexes"`
}
