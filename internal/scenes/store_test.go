package scenes

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/renholt/crossbar/internal/apperr"
	"github.com/renholt/crossbar/internal/cec"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "crossbar-scenes-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	sc, err := db.Create(ctx, "Movie Night", map[int]int{1: 3, 2: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sc.ID == "" {
		t.Fatal("scene ID not generated")
	}

	got, err := db.Get(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Movie Night" {
		t.Errorf("name = %q", got.Name)
	}
	if !reflect.DeepEqual(got.Routing, map[int]int{1: 3, 2: 3}) {
		t.Errorf("routing = %v", got.Routing)
	}
	if got.CecConfig != nil {
		t.Errorf("new scene should have no cec config, got %+v", got.CecConfig)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a, _ := db.Create(ctx, "Alpha", nil)
	if _, err := db.Create(ctx, "Beta", nil); err != nil {
		t.Fatal(err)
	}

	scenes, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(scenes) != 2 || scenes[0].Name != "Alpha" {
		t.Errorf("list = %+v", scenes)
	}

	if err := db.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.Delete(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCecConfigRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	sc, _ := db.Create(ctx, "Movie", nil)

	cfg, err := db.GetCecConfig(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for fresh scene, got %+v", cfg)
	}

	want := &cec.SceneConfig{
		NavTargets:      []string{"input_3"},
		PlaybackTargets: []string{},
		VolumeTargets:   []string{"output_5"},
		PowerOnTargets:  []string{"input_3", "output_5"},
		PowerOffTargets: []string{"output_5"},
		AutoResolved:    false,
	}
	if err := db.UpdateCecConfig(ctx, sc.ID, want, ""); err != nil {
		t.Fatalf("update config: %v", err)
	}

	got, err := db.GetCecConfig(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("config = %+v, want %+v", got, want)
	}
}

func TestUpdateCecConfig_OptimisticConcurrency(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	sc, _ := db.Create(ctx, "Movie", nil)
	cfg := &cec.SceneConfig{NavTargets: []string{"input_1"}}
	if err := db.UpdateCecConfig(ctx, sc.ID, cfg, ""); err != nil {
		t.Fatal(err)
	}

	sum, err := db.CecConfigChecksum(ctx, sc.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Matching checksum passes.
	cfg.NavTargets = []string{"input_2"}
	if err := db.UpdateCecConfig(ctx, sc.ID, cfg, sum); err != nil {
		t.Fatalf("update with matching checksum: %v", err)
	}

	// Stale checksum is rejected.
	if err := db.UpdateCecConfig(ctx, sc.ID, cfg, sum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestUpdateCecConfig_MissingScene(t *testing.T) {
	db := testDB(t)
	err := db.UpdateCecConfig(context.Background(), "missing", &cec.SceneConfig{}, "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
