// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocalRegistryLookup(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"optics/Arm.comp":   armComp,
		"sources/Moderator.comp": "DEFINE COMPONENT Moderator\nEND\n",
		"examples/PSI.instr":     "DEFINE INSTRUMENT PSI()\nTRACE\nEND\n",
	})
	reg := NewLocalRegistry("lib", root, 5)

	tests := []struct {
		name  string
		ext   string
		known bool
	}{
		{"Arm", ".comp", true},
		{"Arm.comp", "", true},
		{"optics/Arm.comp", "", true},
		{"Moderator", ".comp", true},
		{"PSI", "", true},
		{"Missing", ".comp", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reg.Known(tt.name, tt.ext); got != tt.known {
				t.Errorf("Known(%q, %q) got %v, want %v", tt.name, tt.ext, got, tt.known)
			}
		})
	}

	full, err := reg.Fullname("Arm", ".comp")
	if err != nil {
		t.Fatal(err)
	}
	if full != "optics/Arm.comp" {
		t.Errorf("fullname got %q", full)
	}
	content, err := reg.Contents("Arm", ".comp")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != armComp {
		t.Errorf("contents differ")
	}
	if !reg.Unique("Moderator") {
		t.Error("Moderator should be unique")
	}
}

func TestCollectLocalRegistries(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	t.Setenv("MCCODEANTLR_MCSTAS__PATHS", dirA+" "+dirB)

	regs := CollectLocalRegistries(McStas)
	if len(regs) != 3 {
		t.Fatalf("registries got %d, want 2 env + working_directory", len(regs))
	}
	first := regs[0].(*LocalRegistry)
	second := regs[1].(*LocalRegistry)
	if first.Root != dirA || second.Root != dirB {
		t.Errorf("env roots got %q, %q", first.Root, second.Root)
	}
	if first.Priority() != 5 {
		t.Errorf("env registry priority got %d", first.Priority())
	}
	last := regs[len(regs)-1].(*LocalRegistry)
	if last.Name() != "working_directory" {
		t.Errorf("last registry got %q, want working_directory", last.Name())
	}
}

func TestCollectLocalRegistriesXtrace(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MCCODEANTLR_MCXTRACE__PATHS", dir)
	regs := CollectLocalRegistries(McXtrace)
	if len(regs) != 2 {
		t.Fatalf("registries got %d", len(regs))
	}
	if regs[0].(*LocalRegistry).Root != dir {
		t.Errorf("env root got %q", regs[0].(*LocalRegistry).Root)
	}
}

func TestHandleSearchKeyword(t *testing.T) {
	dir := t.TempDir()
	reader := newTestReader(t, nil)
	before := len(reader.Registries)

	if err := reader.HandleSearchKeyword(dir); err != nil {
		t.Fatal(err)
	}
	if len(reader.Registries) != before+1 {
		t.Fatal("search keyword did not prepend a registry")
	}
	if reader.Registries[0].(*LocalRegistry).Root != dir {
		t.Errorf("front registry root got %q", reader.Registries[0].(*LocalRegistry).Root)
	}

	// A matching spec must not be added twice.
	if err := reader.HandleSearchKeyword(dir); err != nil {
		t.Fatal(err)
	}
	if len(reader.Registries) != before+1 {
		t.Error("matching search keyword added a duplicate registry")
	}

	// Not a directory: rejected.
	if err := reader.HandleSearchKeyword(filepath.Join(dir, "missing")); err == nil {
		t.Error("invalid registry specification should fail")
	}
}

func TestQuotedSearchDirectives(t *testing.T) {
	dir := t.TempDir()
	src := fmt.Sprintf(`
DEFINE INSTRUMENT searcher()
SEARCH "%s"
SEARCH SHELL "echo %s"
TRACE
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
END
`, dir, dir)
	reader := newTestReader(t, nil)
	ast, err := ParseInstrSource([]byte(src), "searcher.instr")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewInstrVisitor(reader, "searcher.instr", nil, ModeNormal).Visit(ast); err != nil {
		t.Fatal(err)
	}
	// Both directives registered the same directory exactly once:
	// quotes stripped, the shell output's trailing newline trimmed.
	count := 0
	for _, reg := range reader.Registries {
		if lr, ok := reg.(*LocalRegistry); ok && lr.Root == dir {
			count++
		}
	}
	if count != 1 {
		t.Errorf("registry for %s registered %d times, want 1", dir, count)
	}
}

// stubFetcher is a deterministic Fetcher for registry tests.
type stubFetcher struct {
	tags    []string
	tagsErr error
	archive func(tag string) (io.ReadCloser, error)
}

func (s *stubFetcher) Tags(string) ([]string, error) { return s.tags, s.tagsErr }

func (s *stubFetcher) FetchArchive(_, tag string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, errors.New("no archive")
	}
	return s.archive(tag)
}

func (s *stubFetcher) FetchRaw(_, tag, path string) ([]byte, error) {
	return nil, errors.New("no raw files")
}

func seedRemoteCache(t *testing.T, cacheRoot, name string, tags ...string) {
	t.Helper()
	for _, tag := range tags {
		writeTree(t, filepath.Join(cacheRoot, name, tag), map[string]string{
			"optics/Arm.comp": armComp,
		})
	}
}

func TestRemoteRegistryTagFallbackWithoutFetcher(t *testing.T) {
	cache := t.TempDir()
	seedRemoteCache(t, cache, "mcstas", "v3.4.0", "v3.5.1")

	reg := NewRemoteRegistry("mcstas", "https://example.invalid/repo", "", cache, nil)
	if !reg.Known("Arm", ".comp") {
		t.Fatal("cached component not found without a fetcher")
	}
	if reg.Version() != "v3.5.1" {
		t.Errorf("fallback picked %q, want newest cached v3.5.1", reg.Version())
	}
}

func TestRemoteRegistryTagFallbackOnNetworkError(t *testing.T) {
	cache := t.TempDir()
	seedRemoteCache(t, cache, "mcstas", "v3.4.0")

	fetcher := &stubFetcher{tagsErr: errors.New("network unreachable")}
	reg := NewRemoteRegistry("mcstas", "https://example.invalid/repo", "", cache, fetcher)
	if !reg.Known("Arm", ".comp") {
		t.Fatal("network failure must fall back to the local cache")
	}
	if reg.Version() != "v3.4.0" {
		t.Errorf("fallback version got %q", reg.Version())
	}
}

func TestRemoteRegistryPinnedTag(t *testing.T) {
	cache := t.TempDir()
	seedRemoteCache(t, cache, "mcstas", "v3.4.0", "v3.5.1")

	reg := NewRemoteRegistry("mcstas", "https://example.invalid/repo", "v3.4.0", cache, nil)
	if !reg.Known("Arm", ".comp") {
		t.Fatal("pinned cached version not served")
	}
	if reg.Version() != "v3.4.0" {
		t.Errorf("pinned version got %q", reg.Version())
	}
}

func TestRemoteRegistryInvalidTagsIgnored(t *testing.T) {
	cache := t.TempDir()
	seedRemoteCache(t, cache, "mcstas", "v3.4.0")
	fetcher := &stubFetcher{tags: []string{"main", "nightly"}}
	reg := NewRemoteRegistry("mcstas", "https://example.invalid/repo", "", cache, fetcher)
	if !reg.Known("Arm", ".comp") {
		t.Fatal("invalid remote tags must not defeat the local fallback")
	}
	if reg.Version() == "main" {
		t.Error("non-semver tag accepted as a version")
	}
}
