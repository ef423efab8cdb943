// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package romloader

import (
	"errors"
	"io"
	"path/filepath"

	"github.com/nwaples/rardecode/v2"
	"github.com/samber/oops"
)

func (l *Loader) fromRAR(path string) (ROM, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return ROM{}, oops.Wrapf(err, "open rar")
	}
	defer func() { _ = r.Close() }()

	for {
		header, err := r.Next()
		if errors.Is(err, io.EOF) {
			return ROM{}, ErrNoROMFile
		}
		if err != nil {
			return ROM{}, oops.Wrapf(err, "read rar entry")
		}
		if header.IsDir || !l.wanted(header.Name) {
			continue
		}
		data, err := l.limitedRead(r)
		if err != nil {
			return ROM{}, oops.With("member", header.Name).Wrap(err)
		}
		return ROM{Name: filepath.Base(header.Name), Data: data}, nil
	}
}
