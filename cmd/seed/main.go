// Seed program: creates a heap table of random rows.
// Run: go run ./cmd/seed -rows 10000
// Then inspect: go run ./cmd/inspect_idx -table numbers -column key
package main

import (
	"IndexDB/config"
	"IndexDB/logger"
	storageengine "IndexDB/storage_engine"
	"IndexDB/types"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file")
		table      = flag.String("table", "numbers", "table to create")
		rows       = flag.Int("rows", 1000, "number of rows to insert")
		batch      = flag.Int("batch", 500, "rows per transaction")
		maxKey     = flag.Int("max-key", 1_000_000, "keys are drawn from [0, max-key)")
		index      = flag.String("index", "", "column to index while inserting (empty: none)")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	if err := run(*configPath, *table, *rows, *batch, *maxKey, *index, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, table string, rows, batch, maxKey int, index string, seed int64) error {
	if rows < 0 || batch < 1 || maxKey < 1 {
		return errors.New("rows must be >= 0, batch and max-key >= 1")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	se, err := storageengine.NewStorageEngine(cfg, log)
	if err != nil {
		return err
	}
	defer se.Close()

	hf, err := se.CreateTable(types.NewTableSchema(table,
		types.ColumnDef{Name: "key", Type: types.IntType},
		types.ColumnDef{Name: "seq", Type: types.IntType},
		types.ColumnDef{Name: "label", Type: types.StringType},
	))
	if err != nil {
		return err
	}
	if index != "" {
		if _, err := se.CreateIndex(table, index); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(seed))
	start := time.Now()
	for done := 0; done < rows; {
		n := min(batch, rows-done)
		tx := se.BeginTransaction()
		for i := 0; i < n; i++ {
			key := rng.Intn(maxKey)
			row := types.NewRow(types.IntField(key), types.IntField(done+i), types.StringField(fmt.Sprintf("row-%d", key)))
			if _, err := se.InsertRow(tx, table, row); err != nil {
				_ = se.AbortTransaction(tx)
				return err
			}
		}
		if err := se.CommitTransaction(tx); err != nil {
			return err
		}
		done += n
	}

	pages, err := hf.NumPages()
	if err != nil {
		return err
	}
	log.Info("seed complete",
		zap.String("table", table),
		zap.Int64("seed", seed),
		zap.Duration("took", time.Since(start)))
	fmt.Printf("inserted %s rows into %s: %s pages (%s)\n",
		humanize.Comma(int64(rows)), table,
		humanize.Comma(int64(pages)), humanize.IBytes(uint64(pages)*types.PageSize))
	return nil
}
