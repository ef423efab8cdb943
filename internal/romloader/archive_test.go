// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package romloader

import (
	"path/filepath"
	"testing"
)

func TestBrokenArchives(t *testing.T) {
	l := New(testExtensions, 0)
	tests := []struct {
		name string
		data []byte
		open func(string) (ROM, error)
	}{
		{"7z not an archive", []byte("not a 7z file"), l.from7z},
		{"7z empty", nil, l.from7z},
		{"7z partial magic", magic7z[:3], l.from7z},
		{"rar not an archive", []byte("not a rar file"), l.fromRAR},
		{"rar empty", nil, l.fromRAR},
		{"rar partial magic", magicRAR[:2], l.fromRAR},
		{"zip not an archive", []byte("not a zip file"), l.fromZIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "broken.bin", tt.data)
			if _, err := tt.open(path); err == nil {
				t.Error("expected error for broken archive")
			}
		})
	}
}

func TestBrokenArchives_MissingFile(t *testing.T) {
	l := New(testExtensions, 0)
	missing := filepath.Join(t.TempDir(), "none")
	for _, open := range []func(string) (ROM, error){l.from7z, l.fromRAR, l.fromZIP} {
		if _, err := open(missing); err == nil {
			t.Error("expected error for missing archive")
		}
	}
}
