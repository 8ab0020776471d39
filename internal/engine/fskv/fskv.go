// Package fskv is the filesystem reference driver for the engine contract.
//
// Every key maps to a directory under the root; the value lives in a file
// named "v" inside it. The layout makes the key hierarchy a directory
// hierarchy, so DeletePrefix is a single RemoveAll and a parent record can
// coexist with its children ("chat/c1" and "chat/c1/message/m1").
package fskv

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matheus3301/wavault/internal/engine"
)

const valueFile = "v"

// KV stores records as files under a root directory.
type KV struct {
	root string
}

// Open creates the root directory if needed and returns a driver over it.
func Open(root string) (*KV, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("fskv open %q: %w: %w", root, engine.ErrUnavailable, err)
	}
	return &KV{root: root}, nil
}

func (kv *KV) path(key string) string {
	return filepath.Join(kv.root, filepath.FromSlash(key), valueFile)
}

func (kv *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(kv.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fskv get %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	return data, true, nil
}

func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return kv.delete(key)
	}
	path := kv.path(key)
	if existing, ok, err := kv.Get(ctx, key); err == nil && ok && bytes.Equal(existing, value) {
		// Identical rewrite: leave the mtime alone.
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("fskv set %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	// Write-then-rename so a crash never leaves a partial value.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".v-*")
	if err != nil {
		return fmt.Errorf("fskv set %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("fskv set %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("fskv set %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("fskv set %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	return nil
}

func (kv *KV) delete(key string) error {
	err := os.Remove(kv.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fskv delete %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	kv.prune(filepath.Dir(kv.path(key)))
	return nil
}

// prune removes now-empty directories up to the root. Best effort.
func (kv *KV) prune(dir string) {
	for dir != kv.root && strings.HasPrefix(dir, kv.root) {
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (kv *KV) List(_ context.Context, prefix string, offset, limit int) ([]engine.Record, error) {
	base := filepath.Join(kv.root, filepath.FromSlash(prefix))
	var recs []engine.Record
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != valueFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		value, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(kv.root, filepath.Dir(path))
		if err != nil {
			return err
		}
		recs = append(recs, engine.Record{
			Key:        filepath.ToSlash(rel),
			Value:      value,
			ModifiedAt: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fskv list %q: %w: %w", prefix, engine.ErrUnavailable, err)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ModifiedAt != recs[j].ModifiedAt {
			return recs[i].ModifiedAt > recs[j].ModifiedAt
		}
		return recs[i].Key < recs[j].Key
	})
	if offset >= len(recs) {
		return nil, nil
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs, nil
}

func (kv *KV) DeletePrefix(_ context.Context, prefix string) error {
	dir := filepath.Join(kv.root, filepath.FromSlash(prefix))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("fskv delete prefix %q: %w: %w", prefix, engine.ErrUnavailable, err)
	}
	kv.prune(filepath.Dir(dir))
	return nil
}

func (kv *KV) Close() error { return nil }

// Root returns the driver's root directory.
func (kv *KV) Root() string { return kv.root }
