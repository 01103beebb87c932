// Package icons maintains the on-disk icon cache shared with the guest.
// One PNG per package name, world-readable so the guest's unprivileged
// processes can load it directly.
package icons

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	_ "image/gif"
	_ "image/jpeg"

	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/infrastructure/monitoring"
)

// Icon files must be readable from the guest's privilege domain.
const fileMode = 0o644

// Source resolves raw icon bytes for a package. A nil slice with nil
// error means the package has no resolvable icon.
type Source interface {
	Icon(ctx context.Context, pkg string) ([]byte, error)
}

// Cache writes one encoded icon per package under a fixed directory.
type Cache struct {
	dir     string
	source  Source
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates an icon cache rooted at dir.
func NewCache(dir string, source Source, log *logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create icons dir: %w", err)
	}
	return &Cache{
		dir:    dir,
		source: source,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// WithMetrics adds metrics tracking to the cache.
func (c *Cache) WithMetrics(metrics *monitoring.Metrics) *Cache {
	c.metrics = metrics
	return c
}

// Path returns the cache file path for a package.
func (c *Cache) Path(pkg string) string {
	return filepath.Join(c.dir, pkg+".png")
}

// Refresh re-resolves and rewrites the icon for a package. A package with
// no resolvable icon is a no-op, not an error. The per-package lock is
// held across resolve, encode, and write so concurrent refreshes for the
// same package serialize into a deliberate last-writer-wins.
func (c *Cache) Refresh(ctx context.Context, pkg string) error {
	lock := c.keyLock(pkg)
	lock.Lock()
	defer lock.Unlock()

	raw, err := c.source.Icon(ctx, pkg)
	if err != nil {
		c.log.Debug("icon resolution failed", zap.String("package", pkg), zap.Error(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		c.log.Debug("icon decode failed", zap.String("package", pkg), zap.Error(err))
		return nil
	}

	if err := c.write(pkg, rasterize(img)); err != nil {
		c.log.Error("icon write failed", zap.String("package", pkg), zap.Error(err))
		return err
	}
	if c.metrics != nil {
		c.metrics.IconWrites.Inc()
	}
	return nil
}

// Evict removes the cached icon for a package. Missing files are fine.
func (c *Cache) Evict(pkg string) error {
	lock := c.keyLock(pkg)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(c.Path(pkg))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("evict icon %s: %w", pkg, err)
	}
	if c.metrics != nil {
		c.metrics.IconEvictions.Inc()
	}
	return nil
}

func (c *Cache) write(pkg string, img *image.RGBA) error {
	path := c.Path(pkg)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}

	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	encodeErr := encoder.Encode(f, img)
	closeErr := f.Close()
	if encodeErr != nil {
		return encodeErr
	}
	if closeErr != nil {
		return closeErr
	}

	// The create mode is masked by umask; force the final bits.
	return os.Chmod(path, fileMode)
}

func (c *Cache) keyLock(pkg string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[pkg]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[pkg] = lock
	}
	return lock
}

// rasterize draws the decoded icon onto an RGBA canvas sized to its
// intrinsic bounds, unless it already is one.
func rasterize(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return canvas
}
