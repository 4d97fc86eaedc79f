package alert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Flag is the filesystem marker that switches alert delivery on.
type Flag struct {
	Path string
}

func (f Flag) Enabled() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Enable creates the marker. Calling it twice is fine.
func (f Flag) Enable() error {
	if dir := filepath.Dir(f.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create flag dir: %w", err)
		}
	}
	return os.WriteFile(f.Path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// Disable removes the marker. A missing marker is not an error.
func (f Flag) Disable() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
