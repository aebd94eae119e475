package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Catalog manager persists which secondary indexes exist, so that they are
opened again after a restart and keep receiving inserts.

Only the declaration is stored. Index contents are rebuilt from the table on
first use, and table schemas live next to their heap files.

	<metaDir>/catalog.json
*/

const catalogFileName = "catalog.json"

func NewCatalogManager(metaDir string, log *zap.Logger) (*CatalogManager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create metadata dir")
	}
	cm := &CatalogManager{
		path:    filepath.Join(metaDir, catalogFileName),
		indexes: make(map[IndexEntry]struct{}),
		log:     log.Named("catalog"),
	}
	if err := cm.load(); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *CatalogManager) load() error {
	data, err := os.ReadFile(cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read catalog")
	}

	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrapf(err, "failed to parse catalog %s", cm.path)
	}
	for _, e := range f.Indexes {
		cm.indexes[normalize(e)] = struct{}{}
	}
	cm.log.Debug("catalog loaded", zap.Int("indexes", len(cm.indexes)))
	return nil
}

// RegisterIndex records table.column. It reports false if it was already known.
func (cm *CatalogManager) RegisterIndex(table, column string) (bool, error) {
	e := normalize(IndexEntry{Table: table, Column: column})

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.indexes[e]; ok {
		return false, nil
	}
	cm.indexes[e] = struct{}{}
	if err := cm.persist(); err != nil {
		delete(cm.indexes, e)
		return false, err
	}
	return true, nil
}

// UnregisterIndex forgets table.column. Unknown entries are ignored.
func (cm *CatalogManager) UnregisterIndex(table, column string) error {
	e := normalize(IndexEntry{Table: table, Column: column})

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.indexes[e]; !ok {
		return nil
	}
	delete(cm.indexes, e)
	if err := cm.persist(); err != nil {
		cm.indexes[e] = struct{}{}
		return err
	}
	return nil
}

// Indexes returns the declared indexes ordered by table, then column.
func (cm *CatalogManager) Indexes() []IndexEntry {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.sorted()
}

func (cm *CatalogManager) sorted() []IndexEntry {
	out := make([]IndexEntry, 0, len(cm.indexes))
	for e := range cm.indexes {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// persist replaces the catalog file atomically. Assumes cm.mu is held.
func (cm *CatalogManager) persist() error {
	data, err := json.MarshalIndent(catalogFile{Indexes: cm.sorted()}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode catalog")
	}
	tmp := cm.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write catalog")
	}
	if err := os.Rename(tmp, cm.path); err != nil {
		return errors.Wrap(err, "failed to replace catalog")
	}
	return nil
}

// column names match case-insensitively everywhere
func normalize(e IndexEntry) IndexEntry {
	e.Column = strings.ToLower(e.Column)
	return e
}
