package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/vision/dataset"
)

func runPrepare(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	download := fs.Bool("download", false, "download and extract the dataset first")
	fs.Parse(args)

	return prepare(ctx, cfg, *download)
}

// prepare scans both class folders, deletes unreadable images, prints the
// dataset stats and splits every class into the train and test directories
func prepare(ctx context.Context, cfg config.Config, download bool) error {
	fmt.Println("--- Dataset download and stats ---")
	if download {
		fmt.Printf("📥 Downloading %s\n", cfg.DatasetURL)
		if err := dataset.Fetch(ctx, cfg.DatasetURL, cfg.ArchivePath, cfg.DatasetRoot); err != nil {
			return err
		}
	}

	scans := make([]*dataset.ScanResult, len(cfg.ClassDirs))
	tables := make([]dataset.ResolutionTable, len(cfg.ClassDirs))
	var corrupted []string
	for i := range cfg.ClassDirs {
		scan, err := dataset.ScanDirectory(cfg.ClassImageDir(i), dataset.ScanOptions{Strict: cfg.StrictScan})
		if err != nil {
			return err
		}
		scans[i] = scan
		tables[i] = scan.Resolutions
		corrupted = append(corrupted, scan.Corrupted...)
	}

	if _, err := dataset.RemoveCorrupted(corrupted, cfg.CorruptedSuffix); err != nil {
		return err
	}

	avg, err := dataset.AverageResolution(dataset.MergeTables(tables...))
	if err != nil {
		return err
	}
	fmt.Println("average images resolution", avg)
	for i, class := range cfg.SplitClasses {
		fmt.Printf("# %s: %d\n", class, len(scans[i].Valid))
	}
	for i, class := range cfg.SplitClasses {
		fmt.Printf("removed %s files: %v\n", class, baseNames(scans[i].Corrupted))
	}

	if err := dataset.CreateSplitDirectories(cfg.TrainDir, cfg.TestDir, cfg.SplitClasses); err != nil {
		return err
	}

	fmt.Println("\n--- Splitting images in Train and Test sets ---")
	for i, class := range cfg.SplitClasses {
		result, err := dataset.SplitFiles(scans[i].Valid, cfg.TrainFraction, cfg.Seed,
			filepath.Join(cfg.TrainDir, class), filepath.Join(cfg.TestDir, class))
		if err != nil {
			return err
		}

		fmt.Printf("✅ %s: %d train, %d test\n", class, len(result.Train), len(result.Test))
		if len(result.Failed) > 0 {
			fmt.Printf("⚠️  %s: %d files could not be copied: %v\n", class, len(result.Failed), baseNames(result.Failed))
		}

		if err := dataset.SaveHoldout(cfg.HoldoutPath(i), result.Test); err != nil {
			return err
		}
	}
	return nil
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}
