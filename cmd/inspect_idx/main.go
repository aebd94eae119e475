// Inspect a secondary index: builds it over the table, checks the tree
// invariants and prints every node.
// Usage: go run ./cmd/inspect_idx -table numbers -column key [-dump=false]
package main

import (
	"IndexDB/config"
	"IndexDB/logger"
	storageengine "IndexDB/storage_engine"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file")
		table      = flag.String("table", "", "indexed table")
		column     = flag.String("column", "", "indexed column")
		dump       = flag.Bool("dump", true, "print every node")
	)
	flag.Parse()

	if *table == "" || *column == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -table <table> -column <column> [-config file] [-dump=false]\n", os.Args[0])
		os.Exit(1)
	}
	if err := run(*configPath, *table, *column, *dump); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, table, column string, dump bool) error {
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

	idx, err := se.CreateIndex(table, column)
	if err != nil {
		return err
	}

	// read-only inspection: the build is thrown away with the transaction
	tx := se.BeginTransaction()
	defer se.AbortTransaction(tx)

	if _, err := idx.EnsureBuilt(tx.ID); err != nil {
		return err
	}
	entries, err := idx.Verify(tx.ID)
	if err != nil {
		return errors.Wrap(err, "index is inconsistent")
	}

	fmt.Printf("index %s on %s.%s: %s entries, %s pages, max %d keys per node\n",
		idx.Path(), table, column,
		humanize.Comma(int64(entries)), humanize.Comma(int64(idx.NumPages())), idx.Capacity())
	if dump {
		return idx.Dump(tx.ID, os.Stdout)
	}
	return nil
}
