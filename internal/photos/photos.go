// Package photos stores completion photos on the local filesystem. Every
// upload gets its own file so a rejected completion never replaces the
// photo of an accepted one.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("photo not found")

// MaxEdgeSetting is the settings key holding the longest stored edge in px.
const MaxEdgeSetting = "photo_max_edge"

// Settings supplies runtime-editable values.
type Settings interface {
	GetIntSetting(ctx context.Context, key string, fallback int) int
}

// FS is a blob store of task photos.
type FS struct {
	dir       string
	publicURL string
	maxEdge   int
	settings  Settings
}

// NewFS creates dir if needed. Images larger than maxEdge on their longest
// side are scaled down; zero keeps the original size.
func NewFS(dir, publicURL string, maxEdge int) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &FS{dir: dir, publicURL: strings.TrimRight(publicURL, "/"), maxEdge: maxEdge}, nil
}

// UseSettings makes every put read MaxEdgeSetting from src, falling back to
// the size given to NewFS.
func (f *FS) UseSettings(src Settings) { f.settings = src }

func (f *FS) edge(ctx context.Context) int {
	if f.settings == nil {
		return f.maxEdge
	}
	return f.settings.GetIntSetting(ctx, MaxEdgeSetting, f.maxEdge)
}

// DefaultDir returns ~/.config/shiftops/photos
func DefaultDir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "shiftops", "photos"), nil
}

// PutPhoto stores data as a new photo of instanceID and returns its
// reference. Decodable images are re-encoded as JPEG; anything else is kept
// verbatim.
func (f *FS) PutPhoto(ctx context.Context, instanceID int64, data []byte) (string, error) {
	ref := fmt.Sprintf("%d-%s.jpg", instanceID, uuid.NewString())
	out := data
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		if maxEdge := f.edge(ctx); maxEdge > 0 {
			b := img.Bounds()
			if b.Dx() > maxEdge || b.Dy() > maxEdge {
				img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
			}
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return "", fmt.Errorf("encode photo %d: %w", instanceID, err)
		}
		out = buf.Bytes()
	}

	tmp, err := os.CreateTemp(f.dir, ref+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("write photo %d: %w", instanceID, err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write photo %d: %w", instanceID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write photo %d: %w", instanceID, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, ref)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write photo %d: %w", instanceID, err)
	}
	return ref, nil
}

// Remove deletes a stored photo. Unknown refs are not an error.
func (f *FS) Remove(_ context.Context, ref string) error {
	p, err := f.Path(ref)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove photo %s: %w", ref, err)
	}
	return nil
}

// PhotoURL returns the public address of a stored photo.
func (f *FS) PhotoURL(ref string) string {
	if ref == "" {
		return ""
	}
	return f.publicURL + "/photos/" + url.PathEscape(ref)
}

// Path resolves ref to a file inside the store.
func (f *FS) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", ErrNotFound
	}
	p := filepath.Join(f.dir, ref)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return p, nil
}

// Count returns how many photos are stored.
func (f *FS) Count() (int, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, "*.jpg"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}
