package dataset

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/tsawler/catsdogs/progress"
)

// ErrInvalidFraction is returned for a train fraction outside [0, 1]
var ErrInvalidFraction = errors.New("train fraction must be in [0, 1]")

// SplitResult records where every input path ended up
type SplitResult struct {
	Train  []string // source paths copied to the train directory
	Test   []string // source paths copied to the test directory
	Failed []string // source paths whose copy failed
}

// CreateSplitDirectories creates trainDir/<class> and testDir/<class> for every class
func CreateSplitDirectories(trainDir, testDir string, classes []string) error {
	for _, root := range []string{trainDir, testDir} {
		for _, class := range classes {
			if err := os.MkdirAll(filepath.Join(root, class), 0755); err != nil {
				return fmt.Errorf("failed to create split directory: %w", err)
			}
		}
	}
	return nil
}

// SplitFiles shuffles paths in place with a generator seeded by seed, then
// copies the first floor(fraction*len(paths)) files into trainDir and the
// rest into testDir, keeping base names. A failed copy is recorded in
// Failed and does not stop the remaining copies.
func SplitFiles(paths []string, fraction float64, seed int64, trainDir, testDir string) (*SplitResult, error) {
	if fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidFraction, fraction)
	}

	numTrain := int(float64(len(paths)) * fraction)
	ShufflePaths(paths, seed)

	result := &SplitResult{}
	if len(paths) == 0 {
		return result, nil
	}

	bar := progress.NewBar(fmt.Sprintf("%s splitting", filepath.Base(filepath.Dir(paths[0]))), len(paths), "it")
	for i, path := range paths {
		destDir := testDir
		if i < numTrain {
			destDir = trainDir
		}

		if err := copyFile(path, filepath.Join(destDir, filepath.Base(path))); err != nil {
			result.Failed = append(result.Failed, path)
		} else if i < numTrain {
			result.Train = append(result.Train, path)
		} else {
			result.Test = append(result.Test, path)
		}
		bar.Update(i+1, nil)
	}
	bar.Finish()

	return result, nil
}

// ShufflePaths reorders paths deterministically for a given seed
func ShufflePaths(paths []string, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
