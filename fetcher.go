// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/compress/gzip"
)

// Errors
var (
	// ErrNoFetcher is returned when a remote operation is attempted
	// without a configured Fetcher.
	ErrNoFetcher = errors.New("no fetcher configured")
)

// Fetcher retrieves remote registry content. The live HTTP implementation
// lives outside the core; tests inject deterministic stubs, and a nil
// Fetcher makes every remote operation fall back to the local cache.
type Fetcher interface {
	// Tags lists the version tags of the upstream repository.
	Tags(repoURL string) ([]string, error)
	// FetchArchive streams the tar.gz archive of one tag.
	FetchArchive(repoURL, tag string) (io.ReadCloser, error)
	// FetchRaw retrieves a single raw file at /raw/{tag}/{path}.
	FetchRaw(repoURL, tag, path string) ([]byte, error)
}

// extractTarGz unpacks a tar.gz stream below dir. Archive entries are
// stripped of their single leading path element, the layout GitHub tag
// archives use.
func extractTarGz(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := stripFirstPathElement(hdr.Name)
		if name == "" {
			continue
		}
		target, err := securePath(dir, name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

func stripFirstPathElement(name string) string {
	name = strings.TrimPrefix(name, "./")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// securePath joins dir and name, rejecting traversal outside dir.
func securePath(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", errors.New("archive entry escapes extraction directory")
	}
	return target, nil
}
