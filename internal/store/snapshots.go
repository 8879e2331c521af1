package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// generateFilename creates a timestamped filename with the given prefix and extension.
func generateFilename(prefix string, at time.Time, ext string) string {
	return prefix + "_" + at.UTC().Format("2006-01-02T15-04-05") + ext
}

// snapshotPrefix turns a target URL into something safe for a filename
func snapshotPrefix(targetURL string) string {
	host := "page"
	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return strings.NewReplacer(":", "_", "/", "_").Replace(host)
}

// SaveSnapshot writes the HTML of a failed run to dir.
// Returns the path to the saved file.
func SaveSnapshot(dir, targetURL string, at time.Time, html string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(snapshotPrefix(targetURL), at, ".html"))

	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	return path, nil
}

// LatestSnapshot returns the path to the most recent snapshot in dir.
func LatestSnapshot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no snapshots in %s", dir)
		}
		return "", err
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".html" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || !info.ModTime().Before(latestMod) {
			latest = entry.Name()
			latestMod = info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("no snapshots in %s", dir)
	}

	return filepath.Join(dir, latest), nil
}
