// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package romloader

import (
	"archive/zip"
	"path/filepath"

	"github.com/samber/oops"
)

func (l *Loader) fromZIP(path string) (ROM, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return ROM{}, oops.Wrapf(err, "open zip")
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !l.wanted(f.Name) {
			continue
		}
		if f.UncompressedSize64 > uint64(l.maxSize) {
			return ROM{}, ErrFileTooLarge
		}
		rc, err := f.Open()
		if err != nil {
			return ROM{}, oops.With("member", f.Name).Wrapf(err, "open member")
		}
		defer func() { _ = rc.Close() }()

		data, err := l.limitedRead(rc)
		if err != nil {
			return ROM{}, oops.With("member", f.Name).Wrap(err)
		}
		return ROM{Name: filepath.Base(f.Name), Data: data}, nil
	}
	return ROM{}, ErrNoROMFile
}
