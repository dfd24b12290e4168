// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// Source is an open McCode source file. Large component libraries are
// memory mapped instead of read into the heap.
type Source struct {
	Name string
	Data []byte

	m mmap.MMap
	f *os.File
}

// OpenSource memory-maps the named file.
func OpenSource(name string) (*Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return &Source{Name: name, Data: []byte{}}, nil
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Source{Name: name, Data: data, m: data, f: f}, nil
}

// Close unmaps and closes the underlying file.
func (s *Source) Close() error {
	if s.m != nil {
		_ = s.m.Unmap()
		s.m = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}

// readSourceFile returns a heap copy of a file's content, mapping it
// during the read.
func readSourceFile(name string) ([]byte, error) {
	s, err := OpenSource(name)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	out := make([]byte, len(s.Data))
	copy(out, s.Data)
	return out, nil
}
