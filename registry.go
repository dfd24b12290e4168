// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Registry is a named, prioritized source of component and instrument
// files. A registry list is searched in priority order; the first match
// wins.
type Registry interface {
	Name() string
	Priority() int
	// Known reports whether a file matching name (with the optional
	// extension appended) exists in the registry.
	Known(name, ext string) bool
	// Unique reports whether exactly one file matches name.
	Unique(name string) bool
	// Path returns the absolute on-disk path of the match.
	Path(name, ext string) (string, error)
	// Contents returns the file content of the match.
	Contents(name, ext string) ([]byte, error)
	// Fullname returns the registry-relative path of the match, which
	// carries the category directory for component files.
	Fullname(name, ext string) (string, error)
}

// Flavor selects the component library a Reader defaults to.
type Flavor uint8

// Supported flavors.
const (
	McStas Flavor = iota
	McXtrace
)

func (f Flavor) String() string {
	if f == McXtrace {
		return "McXtrace"
	}
	return "McStas"
}

// EnvPathsVar returns the environment variable naming extra local
// registry directories for the flavor.
func (f Flavor) EnvPathsVar() string {
	if f == McXtrace {
		return "MCCODEANTLR_MCXTRACE__PATHS"
	}
	return "MCCODEANTLR_MCSTAS__PATHS"
}

// nameCandidates lists the file names a (name, ext) query may match.
func nameCandidates(name, ext string) []string {
	if ext != "" && !strings.HasSuffix(name, ext) {
		return []string{name + ext}
	}
	if ext != "" || strings.Contains(name, ".") {
		return []string{name}
	}
	// Extension-free queries match the known source extensions.
	return []string{name + ".comp", name + ".instr", name}
}

// LocalRegistry indexes a directory tree.
type LocalRegistry struct {
	RegName  string `json:"name"`
	Root     string `json:"root"`
	RegPrior int    `json:"priority"`

	index map[string][]string // base name -> relative paths
}

// NewLocalRegistry indexes the directory tree rooted at root.
func NewLocalRegistry(name, root string, priority int) *LocalRegistry {
	return &LocalRegistry{RegName: name, Root: root, RegPrior: priority}
}

// Name implements Registry.
func (r *LocalRegistry) Name() string { return r.RegName }

// Priority implements Registry.
func (r *LocalRegistry) Priority() int { return r.RegPrior }

func (r *LocalRegistry) ensureIndex() {
	if r.index != nil {
		return
	}
	r.index = make(map[string][]string)
	_ = filepath.WalkDir(r.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.Root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		base := path.Base(rel)
		r.index[base] = append(r.index[base], rel)
		return nil
	})
}

func (r *LocalRegistry) matches(name, ext string) []string {
	r.ensureIndex()
	var out []string
	for _, candidate := range nameCandidates(name, ext) {
		// A path-qualified spec matches directly.
		if strings.Contains(candidate, "/") {
			if _, err := os.Stat(filepath.Join(r.Root, filepath.FromSlash(candidate))); err == nil {
				out = append(out, candidate)
			}
			continue
		}
		out = append(out, r.index[candidate]...)
	}
	return out
}

// Known implements Registry.
func (r *LocalRegistry) Known(name, ext string) bool {
	return len(r.matches(name, ext)) > 0
}

// Unique implements Registry.
func (r *LocalRegistry) Unique(name string) bool {
	return len(r.matches(name, "")) == 1
}

// Fullname implements Registry.
func (r *LocalRegistry) Fullname(name, ext string) (string, error) {
	m := r.matches(name, ext)
	if len(m) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	sort.Strings(m)
	return m[0], nil
}

// Path implements Registry.
func (r *LocalRegistry) Path(name, ext string) (string, error) {
	rel, err := r.Fullname(name, ext)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(r.Root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	return abs, nil
}

// Contents implements Registry.
func (r *LocalRegistry) Contents(name, ext string) ([]byte, error) {
	p, err := r.Path(name, ext)
	if err != nil {
		return nil, err
	}
	return readSourceFile(p)
}

// Equal reports whether another registry indexes the same tree.
func (r *LocalRegistry) Equal(o *LocalRegistry) bool {
	return r.RegName == o.RegName && r.Root == o.Root && r.RegPrior == o.RegPrior
}

// InMemoryRegistry serves file contents from a map of relative paths.
type InMemoryRegistry struct {
	RegName  string
	RegPrior int
	Files    map[string]string
}

// NewInMemoryRegistry builds a registry over the given relative-path to
// content map.
func NewInMemoryRegistry(name string, files map[string]string) *InMemoryRegistry {
	return &InMemoryRegistry{RegName: name, Files: files}
}

// Name implements Registry.
func (r *InMemoryRegistry) Name() string { return r.RegName }

// Priority implements Registry.
func (r *InMemoryRegistry) Priority() int { return r.RegPrior }

func (r *InMemoryRegistry) matches(name, ext string) []string {
	var out []string
	for _, candidate := range nameCandidates(name, ext) {
		if _, ok := r.Files[candidate]; ok {
			out = append(out, candidate)
			continue
		}
		for rel := range r.Files {
			if path.Base(rel) == candidate {
				out = append(out, rel)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Known implements Registry.
func (r *InMemoryRegistry) Known(name, ext string) bool { return len(r.matches(name, ext)) > 0 }

// Unique implements Registry.
func (r *InMemoryRegistry) Unique(name string) bool { return len(r.matches(name, "")) == 1 }

// Fullname implements Registry.
func (r *InMemoryRegistry) Fullname(name, ext string) (string, error) {
	m := r.matches(name, ext)
	if len(m) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return m[0], nil
}

// Path implements Registry. In-memory entries have no on-disk path; the
// registry-qualified name is returned instead.
func (r *InMemoryRegistry) Path(name, ext string) (string, error) {
	rel, err := r.Fullname(name, ext)
	if err != nil {
		return "", err
	}
	return path.Join("memory:"+r.RegName, rel), nil
}

// Contents implements Registry.
func (r *InMemoryRegistry) Contents(name, ext string) ([]byte, error) {
	rel, err := r.Fullname(name, ext)
	if err != nil {
		return nil, err
	}
	return []byte(r.Files[rel]), nil
}

// ModuleRegistry serves files from an fs.FS, typically an embedded
// resource tree.
type ModuleRegistry struct {
	RegName  string
	RegPrior int
	FS       fs.FS
}

// NewModuleRegistry wraps an fs.FS as a registry.
func NewModuleRegistry(name string, fsys fs.FS) *ModuleRegistry {
	return &ModuleRegistry{RegName: name, FS: fsys}
}

// Name implements Registry.
func (r *ModuleRegistry) Name() string { return r.RegName }

// Priority implements Registry.
func (r *ModuleRegistry) Priority() int { return r.RegPrior }

func (r *ModuleRegistry) matches(name, ext string) []string {
	var out []string
	for _, candidate := range nameCandidates(name, ext) {
		if f, err := fs.Stat(r.FS, candidate); err == nil && !f.IsDir() {
			out = append(out, candidate)
			continue
		}
		_ = fs.WalkDir(r.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if path.Base(p) == candidate {
				out = append(out, p)
			}
			return nil
		})
	}
	sort.Strings(out)
	return out
}

// Known implements Registry.
func (r *ModuleRegistry) Known(name, ext string) bool { return len(r.matches(name, ext)) > 0 }

// Unique implements Registry.
func (r *ModuleRegistry) Unique(name string) bool { return len(r.matches(name, "")) == 1 }

// Fullname implements Registry.
func (r *ModuleRegistry) Fullname(name, ext string) (string, error) {
	m := r.matches(name, ext)
	if len(m) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return m[0], nil
}

// Path implements Registry.
func (r *ModuleRegistry) Path(name, ext string) (string, error) {
	rel, err := r.Fullname(name, ext)
	if err != nil {
		return "", err
	}
	return path.Join("module:"+r.RegName, rel), nil
}

// Contents implements Registry.
func (r *ModuleRegistry) Contents(name, ext string) ([]byte, error) {
	rel, err := r.Fullname(name, ext)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(r.FS, rel)
}

// RemoteRegistry exposes a version-pinned remote archive as a local
// cache. The archive is fetched lazily on first use; version-tag
// resolution asks the remote first and falls back to versions already
// present in the cache when the fetcher is missing or fails.
type RemoteRegistry struct {
	RegName    string
	URL        string
	VersionTag string // pinned tag, or "" for newest
	RegPrior   int
	CacheRoot  string
	Fetcher    Fetcher

	resolved string
	local    *LocalRegistry
	ensured  bool
	ensure   error
}

// NewRemoteRegistry builds a remote registry caching below cacheRoot. A
// nil fetcher restricts the registry to already-cached versions.
func NewRemoteRegistry(name, url, versionTag, cacheRoot string, fetcher Fetcher) *RemoteRegistry {
	return &RemoteRegistry{
		RegName: name, URL: url, VersionTag: versionTag,
		CacheRoot: cacheRoot, Fetcher: fetcher,
	}
}

// Name implements Registry.
func (r *RemoteRegistry) Name() string { return r.RegName }

// Priority implements Registry.
func (r *RemoteRegistry) Priority() int { return r.RegPrior }

// Version returns the resolved version tag, empty before first use.
func (r *RemoteRegistry) Version() string { return r.resolved }

// localVersionTags lists version directories already in the cache,
// newest first.
func (r *RemoteRegistry) localVersionTags() []string {
	entries, err := os.ReadDir(filepath.Join(r.CacheRoot, r.RegName))
	if err != nil {
		return nil
	}
	var tags []string
	for _, e := range entries {
		if e.IsDir() && semver.IsValid(e.Name()) {
			tags = append(tags, e.Name())
		}
	}
	semver.Sort(tags)
	reverse(tags)
	return tags
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// resolveTag picks the version to serve: the pinned tag when set, else
// the newest valid remote tag, else the newest cached version. The local
// fallback on any remote failure is mandatory behavior.
func (r *RemoteRegistry) resolveTag() (string, error) {
	if r.Fetcher != nil {
		if tags, err := r.Fetcher.Tags(r.URL); err == nil {
			var valid []string
			for _, t := range tags {
				if semver.IsValid(t) {
					valid = append(valid, t)
				}
			}
			semver.Sort(valid)
			reverse(valid)
			if r.VersionTag != "" {
				for _, t := range valid {
					if t == r.VersionTag {
						return t, nil
					}
				}
			} else if len(valid) > 0 {
				return valid[0], nil
			}
		}
	}
	local := r.localVersionTags()
	if r.VersionTag != "" {
		for _, t := range local {
			if t == r.VersionTag {
				return t, nil
			}
		}
		return "", fmt.Errorf("version %s of %s: %w", r.VersionTag, r.RegName, ErrNotFound)
	}
	if len(local) > 0 {
		return local[0], nil
	}
	return "", fmt.Errorf("no usable version of %s: %w", r.RegName, ErrNotFound)
}

// ensureLocal resolves the version and materialises the archive in the
// cache, then delegates to a LocalRegistry over the version directory.
func (r *RemoteRegistry) ensureLocal() error {
	if r.ensured {
		return r.ensure
	}
	r.ensured = true
	tag, err := r.resolveTag()
	if err != nil {
		r.ensure = err
		return err
	}
	r.resolved = tag
	dir := filepath.Join(r.CacheRoot, r.RegName, tag)
	if _, err := os.Stat(dir); err != nil {
		if r.Fetcher == nil {
			r.ensure = fmt.Errorf("%s %s: %w", r.RegName, tag, ErrNoFetcher)
			return r.ensure
		}
		body, err := r.Fetcher.FetchArchive(r.URL, tag)
		if err != nil {
			r.ensure = err
			return err
		}
		defer body.Close()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			r.ensure = err
			return err
		}
		if err := extractTarGz(body, dir); err != nil {
			r.ensure = err
			return err
		}
	}
	r.local = NewLocalRegistry(r.RegName, dir, r.RegPrior)
	return nil
}

// Known implements Registry.
func (r *RemoteRegistry) Known(name, ext string) bool {
	if r.ensureLocal() != nil {
		return false
	}
	return r.local.Known(name, ext)
}

// Unique implements Registry.
func (r *RemoteRegistry) Unique(name string) bool {
	if r.ensureLocal() != nil {
		return false
	}
	return r.local.Unique(name)
}

// Path implements Registry.
func (r *RemoteRegistry) Path(name, ext string) (string, error) {
	if err := r.ensureLocal(); err != nil {
		return "", err
	}
	return r.local.Path(name, ext)
}

// Contents implements Registry.
func (r *RemoteRegistry) Contents(name, ext string) ([]byte, error) {
	if err := r.ensureLocal(); err != nil {
		return nil, err
	}
	return r.local.Contents(name, ext)
}

// Fullname implements Registry.
func (r *RemoteRegistry) Fullname(name, ext string) (string, error) {
	if err := r.ensureLocal(); err != nil {
		return "", err
	}
	return r.local.Fullname(name, ext)
}

// RegistryFromSpecification turns a SEARCH spec into a registry: an
// existing directory becomes a local registry named after its base.
func RegistryFromSpecification(spec string) Registry {
	spec = strings.TrimSpace(Unquote(strings.TrimSpace(spec)))
	if spec == "" {
		return nil
	}
	if info, err := os.Stat(spec); err == nil && info.IsDir() {
		return NewLocalRegistry(filepath.Base(spec), spec, 5)
	}
	return nil
}

// RegistriesMatch reports whether the registry already covers the spec,
// by name or by local root directory.
func RegistriesMatch(reg Registry, spec string) bool {
	spec = strings.TrimSpace(Unquote(strings.TrimSpace(spec)))
	if reg.Name() == spec {
		return true
	}
	if lr, ok := reg.(*LocalRegistry); ok {
		if lr.Root == spec {
			return true
		}
		if abs, err := filepath.Abs(lr.Root); err == nil {
			if specAbs, err := filepath.Abs(spec); err == nil && abs == specAbs {
				return true
			}
		}
	}
	return false
}

// CollectLocalRegistries builds local registries from the flavor's
// environment variable (space separated directories) plus a trailing
// working_directory registry.
func CollectLocalRegistries(flavor Flavor) []Registry {
	var out []Registry
	for _, p := range strings.Fields(os.Getenv(flavor.EnvPathsVar())) {
		out = append(out, NewLocalRegistry(filepath.Base(p), p, 5))
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	out = append(out, NewLocalRegistry("working_directory", wd, 0))
	return out
}

// DefaultRegistries returns the flavor's search path: environment-derived
// local registries, the flavor's remote component library, and the
// working directory last.
func DefaultRegistries(flavor Flavor, cacheRoot string, fetcher Fetcher) []Registry {
	locals := CollectLocalRegistries(flavor)
	remoteName := "mcstas"
	remoteURL := "https://github.com/mccode-dev/McCode"
	if flavor == McXtrace {
		remoteName = "mcxtrace"
	}
	remote := NewRemoteRegistry(remoteName, remoteURL, "", cacheRoot, fetcher)
	out := append([]Registry{}, locals[:len(locals)-1]...)
	out = append(out, remote)
	out = append(out, locals[len(locals)-1])
	return out
}

// OrderedRegistries sorts registries by descending priority, keeping the
// incoming order for equal priorities.
func OrderedRegistries(regs []Registry) []Registry {
	out := append([]Registry{}, regs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}
