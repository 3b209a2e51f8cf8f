package ontology

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache stores downloaded ontology source files on disk, keyed by ontology
// id. An entry is valid while its modification time is younger than
// ExpiryDays; replacement is atomic (temp file + rename) so concurrent
// readers never observe a partially written file.
type Cache struct {
	Dir        string
	ExpiryDays int
	Client     *http.Client
}

func NewCache(dir string, expiryDays int) *Cache {
	if expiryDays <= 0 {
		expiryDays = 30
	}
	return &Cache{Dir: dir, ExpiryDays: expiryDays, Client: &http.Client{Timeout: 5 * time.Minute}}
}

func (c *Cache) entryPath(id, format string) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%s.%s", id, strings.ToLower(format)))
}

// Fetch returns the path of a valid cached copy, downloading (or
// re-downloading an expired entry) when needed. Two workers racing to
// populate the same missing entry both download; the rename makes either
// outcome consistent.
func (c *Cache) Fetch(ctx context.Context, id, url, format string) (string, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ontology cache: %w", err)
	}
	path := c.entryPath(id, format)
	if fi, err := os.Stat(path); err == nil {
		if time.Since(fi.ModTime()) < time.Duration(c.ExpiryDays)*24*time.Hour {
			return path, nil
		}
	}
	if err := c.download(ctx, url, path); err != nil {
		return "", fmt.Errorf("ontology cache: fetch %q: %w", id, err)
	}
	return path, nil
}

func (c *Cache) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	tmp, err := os.CreateTemp(c.Dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
