package dataset

import (
	"fmt"
	"os"
)

// RemoveCorrupted deletes every path whose last three characters equal suffix.
// Paths with any other ending are skipped without being reported.
// Corrupted files with another suffix, such as Thumbs.db, are left in place.
func RemoveCorrupted(paths []string, suffix string) ([]string, error) {
	var removed []string
	for _, path := range paths {
		if len(path) < len(suffix) || path[len(path)-len(suffix):] != suffix {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
