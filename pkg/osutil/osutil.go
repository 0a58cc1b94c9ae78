// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil contains filesystem helpers with the default
// permissions used across the project.
package osutil

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultDirPerm  = 0755
	DefaultFilePerm = 0644
)

// WriteFile writes data to the file with the default permissions.
func WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, DefaultFilePerm)
}

// MkdirAll creates the directory and all parents with the default
// permissions.
func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

// IsExist reports whether the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// WriteTempFile writes data to a temp file and returns its name.
func WriteTempFile(data []byte) (string, error) {
	f, err := os.CreateTemp("", "ucov")
	if err != nil {
		return "", fmt.Errorf("failed to create a temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write a temp file: %w", err)
	}
	f.Close()
	return f.Name(), nil
}

// Abs is like filepath.Abs, but panics on failure.
// filepath.Abs can fail only if the working directory was deleted.
func Abs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(fmt.Sprintf("failed to get absolute path: %v", err))
	}
	return abs
}
