package heapfile

import (
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	"IndexDB/types"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file is the start of the heapfile manager
This is responsible for creation and loading of heapfiles, one per table.

Heapfile manager knows the Disk Manager for file related operations like OpenFile, CloseFile
and it also knows the Buffer Pool, which every row operation goes through.

On disk a table is two files in baseDir:
	<table>.heap         the pages
	<table>_schema.json  the column list, needed to decode rows on reload
*/

// NewHeapFileManager creates a new heap file manager
func NewHeapFileManager(baseDir string, diskManager *diskmanager.DiskManager, bufferPool *bufferpool.BufferPool, log *zap.Logger) (*HeapFileManager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create heap directory")
	}
	return &HeapFileManager{
		baseDir:     baseDir,
		files:       make(map[uint32]*HeapFile),
		tableIndex:  make(map[string]uint32),
		diskManager: diskManager,
		bufferPool:  bufferPool,
		log:         log.Named("heapfile"),
	}, nil
}

// CreateHeapfile creates an empty heap file for schema and registers it.
// The file starts with zero pages; the first insert appends one.
func (hfm *HeapFileManager) CreateHeapfile(schema *types.TableSchema) (*HeapFile, error) {
	if schema == nil || len(schema.Columns) == 0 {
		return nil, errors.New("CreateHeapfile: schema has no columns")
	}

	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	// Guard: refuse to create a duplicate entry for the same table.
	if _, exists := hfm.tableIndex[schema.TableName]; exists {
		return nil, errors.Errorf("heap file for table '%s' already open", schema.TableName)
	}

	heapPath := hfm.heapPath(schema.TableName)
	if _, err := os.Stat(heapPath); err == nil {
		return nil, errors.Errorf("heapfile for table '%s' already exists", schema.TableName)
	}

	if err := hfm.writeSchema(schema); err != nil {
		return nil, err
	}

	return hfm.register(schema, heapPath)
}

// LoadHeapFile opens the existing heap file of tableName.
func (hfm *HeapFileManager) LoadHeapFile(tableName string) (*HeapFile, error) {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()

	if fileID, exists := hfm.tableIndex[tableName]; exists {
		return hfm.files[fileID], nil
	}

	heapPath := hfm.heapPath(tableName)
	if _, err := os.Stat(heapPath); os.IsNotExist(err) {
		return nil, errors.Errorf("heap file for table '%s' not found on disk", tableName)
	}

	schema, err := hfm.readSchema(tableName)
	if err != nil {
		return nil, err
	}
	return hfm.register(schema, heapPath)
}

// register assumes hfm.mu is held.
func (hfm *HeapFileManager) register(schema *types.TableSchema, heapPath string) (*HeapFile, error) {
	rpp := RowsPerPage(schema.RowSize())
	if rpp == 0 {
		return nil, errors.Errorf("rows of table '%s' (%d bytes) do not fit in a page", schema.TableName, schema.RowSize())
	}

	fileID, err := hfm.diskManager.OpenFile(heapPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open heapfile")
	}

	hf := &HeapFile{
		fileID:      fileID,
		tableName:   schema.TableName,
		schema:      schema,
		rowsPerPage: rpp,
		filePath:    heapPath,
		diskManager: hfm.diskManager,
		bufferPool:  hfm.bufferPool,
		log:         hfm.log.With(zap.String("table", schema.TableName)),
	}

	hfm.files[fileID] = hf
	hfm.tableIndex[schema.TableName] = fileID

	hf.log.Debug("heapfile registered",
		zap.Uint32("file", fileID),
		zap.Int("rows_per_page", rpp),
		zap.String("path", heapPath))
	return hf, nil
}

func (hfm *HeapFileManager) heapPath(tableName string) string {
	return filepath.Join(hfm.baseDir, tableName+".heap")
}

func (hfm *HeapFileManager) schemaPath(tableName string) string {
	return filepath.Join(hfm.baseDir, tableName+"_schema.json")
}

func (hfm *HeapFileManager) writeSchema(schema *types.TableSchema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode schema")
	}
	if err := os.WriteFile(hfm.schemaPath(schema.TableName), data, 0644); err != nil {
		return errors.Wrap(err, "failed to write schema")
	}
	return nil
}

func (hfm *HeapFileManager) readSchema(tableName string) (*types.TableSchema, error) {
	data, err := os.ReadFile(hfm.schemaPath(tableName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema of table '%s'", tableName)
	}
	var schema types.TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, errors.Wrapf(err, "failed to decode schema of table '%s'", tableName)
	}
	return &schema, nil
}

// GetHeapFileByTable returns the open heap file of tableName.
func (hfm *HeapFileManager) GetHeapFileByTable(tableName string) (*HeapFile, error) {
	hfm.mu.RLock()
	defer hfm.mu.RUnlock()
	fileID, ok := hfm.tableIndex[tableName]
	if !ok {
		return nil, errors.Errorf("heap file for table '%s' not open", tableName)
	}
	return hfm.files[fileID], nil
}

// GetHeapFileByID returns the open heap file with fileID.
func (hfm *HeapFileManager) GetHeapFileByID(fileID uint32) (*HeapFile, error) {
	hfm.mu.RLock()
	defer hfm.mu.RUnlock()
	hf, ok := hfm.files[fileID]
	if !ok {
		return nil, errors.Errorf("heap file %d not open", fileID)
	}
	return hf, nil
}

// Tables lists the open tables.
func (hfm *HeapFileManager) Tables() []string {
	hfm.mu.RLock()
	defer hfm.mu.RUnlock()
	out := make([]string, 0, len(hfm.tableIndex))
	for name := range hfm.tableIndex {
		out = append(out, name)
	}
	return out
}

// CloseAll closes every heap file this manager opened.
func (hfm *HeapFileManager) CloseAll() error {
	hfm.mu.Lock()
	defer hfm.mu.Unlock()
	var firstErr error
	for id := range hfm.files {
		if err := hfm.diskManager.CloseFile(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	hfm.files = make(map[uint32]*HeapFile)
	hfm.tableIndex = make(map[string]uint32)
	return firstErr
}
