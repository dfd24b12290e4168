// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mccode-dev/mccode/log"
)

// Options configures a Reader.
type Options struct {
	// Registries seeds the search path; the flavor defaults are used
	// when empty.
	Registries []Registry

	// Flavor selects the default component library.
	Flavor Flavor

	// CacheRoot is where remote registries materialise their archives.
	CacheRoot string

	// Fetcher retrieves remote registry content; nil restricts remote
	// registries to their local caches.
	Fetcher Fetcher

	// A custom logger.
	Logger log.Logger
}

// Reader resolves component and instrument files through an ordered
// registry list and memoizes parsed components.
type Reader struct {
	Registries []Registry
	Components map[string]*Comp
	Flavor     Flavor

	logger *log.Helper
}

// NewReader builds a Reader from options.
func NewReader(opts *Options) *Reader {
	if opts == nil {
		opts = &Options{}
	}
	r := &Reader{
		Components: make(map[string]*Comp),
		Flavor:     opts.Flavor,
	}
	if opts.Logger == nil {
		logger := log.NewStdLogger(os.Stdout)
		r.logger = log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))
	} else {
		r.logger = log.NewHelper(opts.Logger)
	}
	if len(opts.Registries) == 0 {
		r.Registries = DefaultRegistries(opts.Flavor, opts.CacheRoot, opts.Fetcher)
	} else {
		r.Registries = append(r.Registries, opts.Registries...)
	}
	r.Registries = OrderedRegistries(r.Registries)
	return r
}

// PrependRegistry inserts a registry at the front of the search list.
func (r *Reader) PrependRegistry(reg Registry) {
	r.Registries = append([]Registry{reg}, r.Registries...)
}

// AppendRegistry adds a registry at the back of the search list.
func (r *Reader) AppendRegistry(reg Registry) {
	r.Registries = append(r.Registries, reg)
}

// HandleSearchKeyword registers the SEARCH spec as a new front registry
// unless an existing registry already matches it.
func (r *Reader) HandleSearchKeyword(spec string) error {
	for _, reg := range r.Registries {
		if RegistriesMatch(reg, spec) {
			return nil
		}
	}
	reg := RegistryFromSpecification(spec)
	if reg == nil {
		return fmt.Errorf("registry specification %q did not specify a valid registry", spec)
	}
	r.PrependRegistry(reg)
	return nil
}

func (r *Reader) registryNames() string {
	names := make([]string, len(r.Registries))
	for i, reg := range r.Registries {
		names[i] = reg.Name()
	}
	return strings.Join(names, ",")
}

// Locate returns the on-disk path of the first registry match.
func (r *Reader) Locate(name, ext string) (string, error) {
	for _, reg := range r.Registries {
		if reg.Known(name, ext) {
			return reg.Path(name, ext)
		}
	}
	return "", fmt.Errorf("%s: %w (registries: %s)", name, ErrNotFound, r.registryNames())
}

// Contents returns the content of the first registry match, preferring
// in-process source overrides for unsaved component edits.
func (r *Reader) Contents(name, ext string) ([]byte, error) {
	if ext == "" || ext == ".comp" {
		if override, ok := componentCache.getOverride(strings.TrimSuffix(name, ".comp")); ok {
			return []byte(override), nil
		}
	}
	for _, reg := range r.Registries {
		if reg.Known(name, ext) {
			return reg.Contents(name, ext)
		}
	}
	return nil, fmt.Errorf("%s: %w (registries: %s)", name, ErrNotFound, r.registryNames())
}

// Fullname returns the registry-qualified name of the first match.
func (r *Reader) Fullname(name, ext string) (string, error) {
	for _, reg := range r.Registries {
		if reg.Known(name, ext) {
			return reg.Fullname(name, ext)
		}
	}
	return "", fmt.Errorf("%s: %w (registries: %s)", name, ErrNotFound, r.registryNames())
}

// Known reports whether any registry matches the name.
func (r *Reader) Known(name string) bool {
	for _, reg := range r.Registries {
		if reg.Known(name, "") {
			return true
		}
	}
	return false
}

// Unique reports whether exactly one registry matches the name uniquely.
func (r *Reader) Unique(name string) bool {
	count := 0
	for _, reg := range r.Registries {
		if reg.Unique(name) {
			count++
		}
	}
	return count == 1
}

// Contain lists the registries that match the name.
func (r *Reader) Contain(name string) []string {
	var names []string
	for _, reg := range r.Registries {
		if reg.Known(name, "") {
			names = append(names, reg.Name())
		}
	}
	return names
}

// addComponent locates, parses (or cache-loads), enriches, and stores a
// component definition.
func (r *Reader) addComponent(name string) error {
	if _, ok := r.Components[name]; ok {
		return semanticErr(ErrDuplicateName, "the component %s is already known", name)
	}
	filename, err := r.Locate(name, ".comp")
	if err != nil {
		return err
	}
	fullname, err := r.Fullname(name, ".comp")
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(filename)
	if err != nil {
		absPath = filename
	}
	comp, err := componentCache.loadOrParse(absPath, func() (*Comp, error) {
		source, err := r.Contents(name, ".comp")
		if err != nil {
			return nil, err
		}
		return r.parseComponent(name, source, fullname)
	})
	if err != nil {
		return err
	}
	r.Components[name] = comp
	return nil
}

// parseComponent lowers component source to IR, enriching the parameters
// with McDoc units and descriptions and assigning a category.
func (r *Reader) parseComponent(name string, source []byte, fullname string) (*Comp, error) {
	ast, err := ParseCompSource(source, name)
	if err != nil {
		return nil, err
	}
	comp, err := LowerComp(ast, r)
	if err != nil {
		return nil, err
	}
	// McDoc failures are recovered silently with an empty header.
	doc := ParseMcDoc(string(source))
	enrich := func(params []ComponentParameter) {
		for i := range params {
			if entry, ok := doc[params[i].Name]; ok {
				params[i].Unit = entry.Unit
				params[i].Description = entry.Description
			}
		}
	}
	enrich(comp.Define)
	enrich(comp.Setting)
	enrich(comp.Output)
	if comp.Category == "" {
		if dir := strings.SplitN(filepath.ToSlash(fullname), "/", 2); len(dir) == 2 {
			comp.Category = dir[0]
		} else {
			comp.Category = "UNKNOWN"
		}
	}
	return comp, nil
}

// GetComponent returns the named component definition, loading it on
// first use.
func (r *Reader) GetComponent(name string) (*Comp, error) {
	if comp, ok := r.Components[name]; ok {
		return comp, nil
	}
	if err := r.addComponent(name); err != nil {
		return nil, err
	}
	return r.Components[name], nil
}

// InjectSource parses source as the definition of the named component
// and publishes it, bypassing both cache layers. Parse failures keep any
// previously known definition.
func (r *Reader) InjectSource(name, source string) {
	comp, err := r.parseComponent(name, []byte(source), "")
	if err != nil {
		r.logger.Debugf("injected source for %s failed to parse: %v", name, err)
		return
	}
	componentCache.overrideSource(name, source)
	r.Components[name] = comp
}

// Evict forgets the named component and its source override; the next
// GetComponent re-reads through the cache.
func (r *Reader) Evict(name string) {
	delete(r.Components, name)
	componentCache.clearOverride(name)
}

// GetInstrument loads and parses an instrument definition. The file is
// taken from the working directory when present, otherwise located
// through the registries.
func (r *Reader) GetInstrument(name string) (*Instr, error) {
	return r.getInstrument(name, nil, ModeNormal)
}

func (r *Reader) getInstrument(name string, destination *Instr, mode Mode) (*Instr, error) {
	path := name
	if !strings.HasSuffix(path, ".instr") {
		path += ".instr"
	}
	var source []byte
	filename := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if source, err = readSourceFile(path); err != nil {
			return nil, err
		}
		if abs, err := filepath.Abs(path); err == nil {
			filename = abs
		}
	} else {
		located, err := r.Locate(filepath.Base(path), "")
		if err != nil {
			return nil, err
		}
		if source, err = r.Contents(filepath.Base(path), ""); err != nil {
			return nil, err
		}
		filename = located
	}
	ast, err := ParseInstrSource(source, filename)
	if err != nil {
		return nil, err
	}
	visitor := NewInstrVisitor(r, filename, destination, mode)
	instr, err := visitor.Visit(ast)
	if err != nil {
		return nil, err
	}
	instr.Source = filename
	instr.Registries = append([]Registry{}, r.Registries...)
	return instr, nil
}
