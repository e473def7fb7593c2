// Package testutil provides shared test helpers for setting up scene
// databases and state stores.
package testutil

import (
	"os"
	"testing"

	"github.com/renholt/crossbar/internal/matrixstate"
	"github.com/renholt/crossbar/internal/scenes"
)

// TestSceneDB creates a temporary SQLite scene database that is
// automatically cleaned up.
func TestSceneDB(t *testing.T) *scenes.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "crossbar-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := scenes.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestState creates an 8x8 state store.
func TestState(t *testing.T) *matrixstate.Store {
	t.Helper()
	return matrixstate.New(8, 8)
}
