package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)

// ScreenshotStore writes failure screenshots under a base directory
type ScreenshotStore struct {
	baseDir string
	now     func() time.Time
	logger  arbor.ILogger
}

// NewScreenshotStore creates the base directory if needed
func NewScreenshotStore(baseDir string, logger arbor.ILogger) (*ScreenshotStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &ScreenshotStore{baseDir: baseDir, now: time.Now, logger: logger}, nil
}

// SaveScreenshot writes png as <entity>-<timestamp>.png and returns the path
func (s *ScreenshotStore) SaveScreenshot(ctx context.Context, entity string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", fmt.Errorf("empty screenshot for %q", entity)
	}

	name := fmt.Sprintf("%s-%s.png", SafeName(entity), s.now().UTC().Format("20060102-150405.000"))
	path := filepath.Join(s.baseDir, name)

	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(png)).Msg("Screenshot written")
	return path, nil
}

// SafeName lowercases name and reduces it to a filesystem-safe slug
func SafeName(name string) string {
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "unnamed"
	}
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug
}
