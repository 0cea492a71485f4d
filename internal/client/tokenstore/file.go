package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// File stores the pair as a JSON object in a 0600 file. A missing or empty
// file reads as the empty pair.
type File struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

func NewFile(path string, logger *zap.Logger) *File {
	return &File{path: path, logger: orNop(logger)}
}

// Path returns the backing file location
func (f *File) Path() string {
	return f.path
}

func (f *File) Set(_ context.Context, pair Pair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir failed: %w", err)
	}
	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens failed: %w", err)
	}

	// atomic replace
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write tokens failed: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write tokens failed: %w", err)
	}
	return nil
}

func (f *File) Get(context.Context) Pair {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("read tokens failed", zap.String("path", f.path), zap.Error(err))
		}
		return Pair{}
	}
	if len(data) == 0 {
		return Pair{}
	}

	var pair Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		f.logger.Warn("parse tokens failed", zap.String("path", f.path), zap.Error(err))
		return Pair{}
	}
	return pair.Normalize()
}

func (f *File) Remove(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tokens failed: %w", err)
	}
	return nil
}
