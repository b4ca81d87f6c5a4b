// Command replay prints a world's change log statistics and its derived
// per-coordinate block state, optionally cross-checking the change journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"mycraft.gg/internal/persistence/journal"
	"mycraft.gg/internal/persistence/worlddb"
	"mycraft.gg/internal/world"
)

func main() {
	var (
		dbPath     = flag.String("db", "./data/worlds.sqlite", "sqlite database path")
		worldID    = flag.Int64("world", 0, "world id")
		journalDir = flag.String("journal", "", "journal dir to cross-check (optional)")
	)
	flag.Parse()

	if *worldID <= 0 {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}

	store, err := worlddb.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open world db:", err)
		os.Exit(1)
	}
	defer store.Close()

	w, err := store.Get(context.Background(), *worldID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get world:", err)
		os.Exit(1)
	}

	fmt.Printf("world=%d seed=%q changes=%d last_updated=%s\n",
		w.ID, w.Seed, len(w.Changes), w.LastUpdated.Format("2006-01-02T15:04:05.000Z07:00"))

	state := world.Resolve(w.Changes)
	coords := make([]world.Coord, 0, len(state))
	for pos := range state {
		coords = append(coords, pos)
	}
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	fmt.Printf("occupied=%d\n", len(coords))
	for _, pos := range coords {
		fmt.Printf("%d %d %d %s\n", pos.X, pos.Y, pos.Z, state[pos])
	}

	if *journalDir == "" {
		return
	}
	entries, err := journal.ReadAll(*journalDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}
	var batches, changes int
	for _, e := range entries {
		if e.WorldID != *worldID {
			continue
		}
		batches++
		changes += len(e.Changes)
	}
	fmt.Printf("journal: batches=%d changes=%d (store has %d)\n", batches, changes, len(w.Changes))
}
