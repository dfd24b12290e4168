// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"strconv"
	"strings"
)

// si suffix multipliers accepted by SiInt. The two-character binary
// suffixes are matched before the decimal ones.
var siSuffixes = []struct {
	suffix string
	mult   float64
}{
	{"Ki", 1 << 10}, {"Mi", 1 << 20}, {"Gi", 1 << 30}, {"Ti", 1 << 40}, {"Pi", 1 << 50},
	{"k", 1e3}, {"M", 1e6}, {"G", 1e9}, {"T", 1e12}, {"P", 1e15},
}

// maxExactInt is the largest integer the simulation runtimes evaluate
// precisely, since they parse integer inputs as doubles.
const maxExactInt = 1 << 53

// SiInt parses an integer with an optional k/M/G/T/P or Ki/Mi/Gi/Ti/Pi
// suffix, as accepted for particle counts and buffer sizes.
func SiInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, sv := range siSuffixes {
		if !strings.HasSuffix(s, sv.suffix) {
			continue
		}
		stem := strings.TrimSpace(strings.TrimSuffix(s, sv.suffix))
		if n, err := strconv.ParseInt(stem, 10, 64); err == nil {
			return int64(float64(n) * sv.mult), nil
		}
		f, err := strconv.ParseFloat(stem, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid si integer %q", s)
		}
		return int64(f * sv.mult), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid si integer %q", s)
	}
	return int64(f), nil
}

// SiIntExact reports whether the value survives a round trip through a
// double.
func SiIntExact(v int64) bool {
	return v <= maxExactInt && v >= -maxExactInt
}
