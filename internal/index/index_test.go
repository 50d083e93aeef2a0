package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/mindmap/internal/apperr"
	"github.com/starford/mindmap/internal/wire"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "mindmap-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM maps`).Scan(&count); err != nil {
		t.Fatalf("maps table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM projects`).Scan(&count); err != nil {
		t.Fatalf("projects table missing: %v", err)
	}
}

func TestUpsertAndGetMap(t *testing.T) {
	db := testDB(t)
	row := MapRow{ID: "m1", Title: "Payments", Status: "draft", NodeCount: 2, EdgeCount: 1, Checksum: "abc123"}
	if err := db.UpsertMap(row, "Gateway Ledger"); err != nil {
		t.Fatalf("UpsertMap: %v", err)
	}
	got, err := db.GetMap("m1")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if got.Title != "Payments" || got.NodeCount != 2 || got.Checksum != "abc123" || got.CreatedAt.IsZero() {
		t.Errorf("row = %+v", got)
	}
	cs, _ := db.GetChecksum("m1")
	if cs != "abc123" {
		t.Errorf("checksum = %q", cs)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.UpsertMap(MapRow{ID: "m", Title: "Old", Status: "draft", Checksum: "1", CreatedAt: created}, "a")
	_ = db.UpsertMap(MapRow{ID: "m", Title: "New", Status: "published", Checksum: "2"}, "b")

	got, _ := db.GetMap("m")
	if got.Title != "New" || got.Status != "published" || got.Checksum != "2" {
		t.Errorf("row = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed to %v", got.CreatedAt)
	}
}

func TestGetMap_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetMap("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	cs, err := db.GetChecksum("nope")
	if err != nil || cs != "" {
		t.Errorf("GetChecksum = %q, %v", cs, err)
	}
}

func TestDeleteMap(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertMap(MapRow{ID: "del", Status: "draft", Checksum: "x"}, "")
	if err := db.DeleteMap("del"); err != nil {
		t.Fatalf("DeleteMap: %v", err)
	}
	if n, _ := db.Count(); n != 0 {
		t.Errorf("count = %d", n)
	}
}

func TestListMapsFilters(t *testing.T) {
	db := testDB(t)
	base := time.Now().UTC()
	_ = db.UpsertMap(MapRow{ID: "a", Title: "Payments roadmap", Status: "draft", UpdatedAt: base}, "")
	_ = db.UpsertMap(MapRow{ID: "b", Title: "Hiring plan", Status: "published", UpdatedAt: base.Add(time.Minute)}, "")
	_ = db.UpsertMap(MapRow{ID: "c", Title: "payments v2", Status: "draft", UpdatedAt: base.Add(2 * time.Minute)}, "")

	all, err := db.ListMaps("", "")
	if err != nil {
		t.Fatalf("ListMaps: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %+v", all)
	}

	drafts, _ := db.ListMaps("draft", "")
	if len(drafts) != 2 {
		t.Errorf("drafts = %d", len(drafts))
	}

	hits, _ := db.ListMaps("draft", "PAYMENTS")
	if len(hits) != 2 {
		t.Errorf("title filter hits = %d, want 2 (case-insensitive)", len(hits))
	}
}

func TestProjects(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertProject(ProjectRow{ID: "p1", MapID: "m1", Title: "Plan", Path: "projects/p1.md"}); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	p, err := db.GetProject("p1")
	if err != nil || p.MapID != "m1" || p.Path != "projects/p1.md" {
		t.Fatalf("GetProject = %+v, %v", p, err)
	}
	if _, err := db.GetProject("zz"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSearch_Labels(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertMap(MapRow{ID: "s", Title: "Architecture", Status: "draft", Checksum: "1"}, "Gateway uniqueword Ledger")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s" {
		t.Errorf("search results = %+v, want 1 hit for s", results)
	}
}

func TestDescribe(t *testing.T) {
	w := wire.Map{
		Title: "T",
		Nodes: []wire.Node{{Label: "A"}, {Data: map[string]any{"label": "B"}}, {Label: "  "}},
		Edges: []wire.Edge{{SourceID: "x", TargetID: "y"}},
	}
	row, labels := Describe("m", w, "cs")
	if row.Status != "draft" || row.NodeCount != 3 || row.EdgeCount != 1 || row.Checksum != "cs" {
		t.Errorf("row = %+v", row)
	}
	if labels != "A B" {
		t.Errorf("labels = %q", labels)
	}
}
