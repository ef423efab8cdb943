// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package romloader

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// fromGzip unpacks a tar.gz archive, or a plain .gz holding one ROM whose
// name is the archive name without ".gz".
func (l *Loader) fromGzip(r io.Reader, path string) (ROM, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return ROM{}, oops.Wrapf(err, "open gzip")
	}
	defer func() { _ = gr.Close() }()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return l.fromTar(gr)
	}

	data, err := l.limitedRead(gr)
	if err != nil {
		return ROM{}, oops.Wrapf(err, "decompress gzip")
	}
	name := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		name = name[:len(name)-3]
	}
	return ROM{Name: name, Data: data}, nil
}

func (l *Loader) fromTar(r io.Reader) (ROM, error) {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return ROM{}, ErrNoROMFile
		}
		if err != nil {
			return ROM{}, oops.Wrapf(err, "read tar entry")
		}
		if header.Typeflag != tar.TypeReg || !l.wanted(header.Name) {
			continue
		}
		data, err := l.limitedRead(tr)
		if err != nil {
			return ROM{}, oops.With("member", header.Name).Wrap(err)
		}
		return ROM{Name: filepath.Base(header.Name), Data: data}, nil
	}
}
