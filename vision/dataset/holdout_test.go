package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHoldoutRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "cats_test.json")
	paths := []string{"/data/PetImages/Cat/1.jpg", "/data/PetImages/Cat/22.jpg"}

	if err := SaveHoldout(path, paths); err != nil {
		t.Fatalf("SaveHoldout failed: %v", err)
	}

	names, err := LoadHoldout(path)
	if err != nil {
		t.Fatalf("LoadHoldout failed: %v", err)
	}
	if len(names) != 2 || names[0] != "1.jpg" || names[1] != "22.jpg" {
		t.Errorf("Expected base names [1.jpg 22.jpg], got %v", names)
	}
}

func TestLoadHoldoutErrors(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		if _, err := LoadHoldout(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := LoadHoldout(path); err == nil {
			t.Error("Expected error for malformed list")
		}
	})
}

func TestNewDatasetFromLists(t *testing.T) {
	t.Run("Labels", func(t *testing.T) {
		dataset, err := NewDatasetFromLists(
			[]string{"cats", "dogs"},
			[]string{"/test/cats", "/test/dogs"},
			[][]string{{"1.jpg", "2.jpg"}, {"9.jpg"}},
		)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if dataset.Len() != 3 {
			t.Fatalf("Expected 3 items, got %d", dataset.Len())
		}
		path, label, _ := dataset.GetItem(2)
		if path != filepath.Join("/test/dogs", "9.jpg") || label != 1 {
			t.Errorf("Expected dogs/9.jpg with label 1, got %s (%d)", path, label)
		}
		dist := dataset.ClassDistribution()
		if dist["cats"] != 2 || dist["dogs"] != 1 {
			t.Errorf("Unexpected distribution %v", dist)
		}
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, err := NewDatasetFromLists([]string{"cats", "dogs"}, []string{"/a"}, [][]string{{"1.jpg"}})
		if err == nil {
			t.Error("Expected error for mismatched lengths")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewDatasetFromLists([]string{"cats"}, []string{"/a"}, [][]string{nil})
		if err == nil {
			t.Error("Expected error for empty lists")
		}
	})
}
