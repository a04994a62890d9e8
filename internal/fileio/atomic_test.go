package fileio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := WriteJSON(path, payload{Name: "faq", Count: 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got payload
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != "faq" || got.Count != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestWriteCreatesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")

	if err := WriteRaw(path, []byte("<p>first</p>")); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Fatal("no backup expected on first write")
	}

	if err := WriteRaw(path, []byte("<p>second</p>")); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(bak) != "<p>first</p>" {
		t.Errorf("backup = %q, want previous content", bak)
	}
	cur, _ := os.ReadFile(path)
	if string(cur) != "<p>second</p>" {
		t.Errorf("current = %q", cur)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if err := WriteJSON(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "out.json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("directories must not count as files")
	}
	path := filepath.Join(dir, "f")
	if Exists(path) {
		t.Error("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("file not reported as existing")
	}
}
