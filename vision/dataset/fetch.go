package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/catsdogs/progress"
)

// Fetch downloads the zip archive at url to archivePath and extracts it into destDir.
// Failures are returned as-is; there is no retry.
func Fetch(ctx context.Context, url, archivePath, destDir string) error {
	if err := Download(ctx, url, archivePath); err != nil {
		return err
	}
	return Extract(archivePath, destDir)
}

// Download streams the body of url into path
func Download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to download %s: unexpected status %s", url, resp.Status)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer file.Close()

	bar := progress.NewBarWriter(os.Stdout, "download", resp.ContentLength, "B")
	if _, err := io.Copy(file, io.TeeReader(resp.Body, bar)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	bar.Finish()

	return file.Close()
}

// Extract unpacks every entry of the zip archive beneath destDir
func Extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	for _, entry := range reader.File {
		if err := extractEntry(entry, root); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, root string) error {
	target := filepath.Join(root, entry.Name)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %q escapes destination", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return dst.Close()
}
