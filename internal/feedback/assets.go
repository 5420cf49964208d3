// Package feedback turns detection side effects into sounds and images.
package feedback

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Asset subdirectories under the assets directory.
const (
	SoundsDir = "sounds"
	ImagesDir = "images"
)

// URLPrefix is where the HTTP server exposes the assets directory.
const URLPrefix = "/assets/"

// ErrAssetNotFound is returned when a requested asset does not exist.
var ErrAssetNotFound = errors.New("asset not found")

var (
	soundExts = map[string]bool{".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".aac": true, ".flac": true}
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true}
)

// Assets indexes the sound and image files available for each class.
// Files are keyed by base name without extension, so sounds/up.mp3 is the
// sound for class "up" and images/Completed.png is the Completed image.
type Assets struct {
	dir    string
	sounds map[string]string
	images map[string]string
	mu     sync.RWMutex
}

// NewAssets creates an index rooted at dir. Call Discover to scan it.
func NewAssets(dir string) *Assets {
	return &Assets{
		dir:    dir,
		sounds: make(map[string]string),
		images: make(map[string]string),
	}
}

// Discover rescans the sounds and images directories. Missing directories
// simply yield no assets.
func (a *Assets) Discover() error {
	sounds, err := scan(filepath.Join(a.dir, SoundsDir), soundExts)
	if err != nil {
		return err
	}
	images, err := scan(filepath.Join(a.dir, ImagesDir), imageExts)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sounds = sounds
	a.images = images
	return nil
}

// scan maps base names to file paths. Entries are visited in name order, so
// the first matching extension wins.
func scan(dir string, exts map[string]bool) (map[string]string, error) {
	found := make(map[string]string)

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return found, nil // No directory, nothing to discover
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return found, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !exts[strings.ToLower(ext)] {
			continue
		}
		key := strings.TrimSpace(strings.TrimSuffix(name, ext))
		if key == "" {
			continue
		}
		if _, ok := found[key]; ok {
			continue
		}
		found[key] = filepath.Join(dir, name)
	}

	return found, nil
}

// Sound returns the sound file for name.
func (a *Assets) Sound(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	path, ok := a.sounds[name]
	return path, ok
}

// Image returns the image file for name.
func (a *Assets) Image(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	path, ok := a.images[name]
	return path, ok
}

// ImageURL returns the URL the HTTP server serves the image for name at.
func (a *Assets) ImageURL(name string) (string, error) {
	path, ok := a.Image(name)
	if !ok {
		return "", ErrAssetNotFound
	}
	return URLPrefix + ImagesDir + "/" + url.PathEscape(filepath.Base(path)), nil
}

// Sounds returns the names that have a sound, sorted.
func (a *Assets) Sounds() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sortedKeys(a.sounds)
}

// Images returns the names that have an image, sorted.
func (a *Assets) Images() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sortedKeys(a.images)
}

// Dir returns the assets directory.
func (a *Assets) Dir() string {
	return a.dir
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
