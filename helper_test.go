// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"testing"
)

func TestSiInt(t *testing.T) {
	tests := []struct {
		in  string
		out int64
	}{
		{"100", 100},
		{"1k", 1000},
		{"2M", 2000000},
		{"3G", 3000000000},
		{"1T", 1000000000000},
		{"1P", 1000000000000000},
		{"1Ki", 1024},
		{"4Mi", 4 * 1024 * 1024},
		{"1Gi", 1 << 30},
		{"1Ti", 1 << 40},
		{"1Pi", 1 << 50},
		{"1.5k", 1500},
		{" 10 k", 10000},
		{"-5", -5},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SiInt(tt.in)
			if err != nil {
				t.Fatalf("SiInt(%q) failed: %v", tt.in, err)
			}
			if got != tt.out {
				t.Errorf("SiInt(%q) got %d, want %d", tt.in, got, tt.out)
			}
		})
	}
}

func TestSiIntInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1Q", "k"} {
		if _, err := SiInt(in); err == nil {
			t.Errorf("SiInt(%q) should fail", in)
		}
	}
}

func TestSiIntExact(t *testing.T) {
	if !SiIntExact(1 << 52) {
		t.Error("2^52 is exactly representable")
	}
	if SiIntExact(1<<53 + 1) {
		t.Error("2^53+1 is not exactly representable in a double")
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"double width = 2*height;", "width", true},
		{"double linewidth;", "width", false},
		{"width_max = 1;", "width", false},
		{"x=width;", "width", true},
		{"width", "width", true},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) got %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}
