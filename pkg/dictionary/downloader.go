// Package dictionary fetches the two reference lexicons shipped next to the
// exported corpus. A file that is present is never fetched again.
package dictionary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Default lexicon locations.
const (
	GreekFileName  = "UBSGreekNTDic-v1.1-en.json"
	HebrewFileName = "UBSHebrewDic-v0.9.1-en.json"

	GreekURL  = "https://raw.githubusercontent.com/ubsicap/ubs-open-license/main/dictionaries/greek/JSON/UBSGreekNTDic-v1.1-en.JSON"
	HebrewURL = "https://raw.githubusercontent.com/ubsicap/ubs-open-license/main/dictionaries/hebrew/JSON/UBSHebrewDic-v0.9.1-en.JSON"

	DefaultTimeout = 30 * time.Second
)

// Source is one downloadable lexicon.
type Source struct {
	Key      string
	FileName string
	URL      string
}

// DefaultSources returns the Greek and Hebrew UBS lexicons, with the URLs
// optionally overridden.
func DefaultSources(greekURL, hebrewURL string) []Source {
	if greekURL == "" {
		greekURL = GreekURL
	}
	if hebrewURL == "" {
		hebrewURL = HebrewURL
	}
	return []Source{
		{Key: "greek", FileName: GreekFileName, URL: greekURL},
		{Key: "hebrew", FileName: HebrewFileName, URL: hebrewURL},
	}
}

// Result reports what happened to one lexicon.
type Result struct {
	Source     Source
	Path       string
	Skipped    bool
	Downloaded int64
	Err        error
}

// EnsureDictionary checks if the dictionary exists at path. If not, it
// downloads url into a temporary file next to path and renames it into place
// once the body was fully written, so an interrupted download never looks
// complete. It reports whether the file was already present.
func EnsureDictionary(ctx context.Context, client *http.Client, url, path string) (bool, int64, error) {
	if _, err := os.Stat(path); err == nil {
		return true, 0, nil
	} else if !os.IsNotExist(err) {
		return false, 0, err
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, 0, err
	}
	req.Header.Set("User-Agent", "scripturelens-export")

	resp, err := client.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, 0, fmt.Errorf("download failed: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return false, 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		cleanup()
		return false, 0, fmt.Errorf("failed to write to file: %w", err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		cleanup()
		return false, 0, fmt.Errorf("short download: got %d of %d bytes", n, resp.ContentLength)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, 0, err
	}
	return false, n, nil
}

// EnsureAll makes sure every source exists in dir. Failures are logged and
// returned per source; they never stop the remaining downloads.
func EnsureAll(ctx context.Context, client *http.Client, dir string, sources []Source, logger *slog.Logger) []Result {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]Result, 0, len(sources))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		for _, s := range sources {
			results = append(results, Result{Source: s, Path: filepath.Join(dir, s.FileName), Err: err})
		}
		return results
	}
	for _, s := range sources {
		path := filepath.Join(dir, s.FileName)
		skipped, n, err := EnsureDictionary(ctx, client, s.URL, path)
		r := Result{Source: s, Path: path, Skipped: skipped, Downloaded: n, Err: err}
		switch {
		case err != nil:
			logger.Warn("Dictionary download failed", "file", s.FileName, "error", err)
		case skipped:
			logger.Info("Dictionary present, skipping", "file", s.FileName)
		default:
			logger.Info("Dictionary downloaded", "file", s.FileName, "mb", fmt.Sprintf("%.1f", float64(n)/(1024*1024)))
		}
		results = append(results, r)
	}
	return results
}

// FileNames maps source keys to file names, as recorded in the export index.
func FileNames(sources []Source) map[string]string {
	out := make(map[string]string, len(sources))
	for _, s := range sources {
		out[s.Key] = s.FileName
	}
	return out
}
