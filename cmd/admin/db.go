package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelforge.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	_ = fs.Parse(args)

	q := "world"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	if err := runQuery(context.Background(), idx, q, *worldID, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, idx *indexdb.SQLiteIndex, q, worldID string, emit func(any)) error {
	switch q {
	case "world":
		row, ok, err := idx.World(ctx, worldID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("world %s not indexed", worldID)
		}
		emit(row)
	case "chunks":
		rows, err := idx.Chunks(ctx, worldID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			emit(r)
		}
	case "snapshots":
		rows, err := idx.Snapshots(ctx, worldID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			emit(r)
		}
	default:
		return fmt.Errorf("unknown query (want world|chunks|snapshots)")
	}
	return nil
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
