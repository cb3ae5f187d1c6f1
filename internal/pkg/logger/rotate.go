// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingFileWriter implements io.Writer with size-based rotation. When the
// current file would exceed MaxSize, it is renamed with a timestamp suffix
// and a fresh file is opened. Rotated files beyond MaxBackups are pruned,
// and optionally gzip-compressed.
type RotatingFileWriter struct {
	mu   sync.Mutex
	cfg  FileConfig
	file *os.File
	size int64
}

// NewRotatingFileWriter opens (creating if needed) the log file at cfg.Path.
func NewRotatingFileWriter(cfg FileConfig) (*RotatingFileWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10 * 1024 * 1024
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingFileWriter{cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer. Thread-safe.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.cfg.MaxSize {
		// Rotation failure is not fatal; keep writing to the current file.
		_ = w.rotate()
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Sync flushes the file (satisfies zapcore.WriteSyncer).
func (w *RotatingFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close closes the current file.
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *RotatingFileWriter) open() error {
	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", w.cfg.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file %s: %w", w.cfg.Path, err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file for rotation: %w", err)
	}

	backup := w.cfg.Path + "." + time.Now().Format("20060102-150405")
	if err := os.Rename(w.cfg.Path, backup); err != nil {
		_ = w.open()
		return fmt.Errorf("rename log file for rotation: %w", err)
	}

	if w.cfg.Compress {
		go gzipInPlace(backup)
	}

	if err := w.open(); err != nil {
		return err
	}

	go w.prune()
	return nil
}

// prune removes rotated files beyond MaxBackups, oldest first. The timestamp
// suffix sorts chronologically, so lexical order is age order.
func (w *RotatingFileWriter) prune() {
	dir := filepath.Dir(w.cfg.Path)
	base := filepath.Base(w.cfg.Path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []string
	for _, e := range entries {
		name := e.Name()
		if name != base && strings.HasPrefix(name, base+".") {
			backups = append(backups, name)
		}
	}
	sort.Strings(backups)

	if len(backups) > w.cfg.MaxBackups {
		for _, name := range backups[:len(backups)-w.cfg.MaxBackups] {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// gzipInPlace compresses a rotated file and removes the original.
func gzipInPlace(path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		_ = gz.Close()
		_ = dst.Close()
		_ = os.Remove(path + ".gz")
		return
	}
	_ = gz.Close()
	_ = dst.Close()
	_ = os.Remove(path)
}
