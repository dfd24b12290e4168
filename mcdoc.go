// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// McDoc header parsing and canonical regeneration. The %I/%D/%P/%L/%E
// tagged comment convention is line oriented; parse failures recover to
// an empty structured header which the formatter regenerates from the
// parameter list.

package mccode

import (
	"regexp"
	"sort"
	"strings"
)

// McDocEntry is the documented unit and description of one parameter.
type McDocEntry struct {
	Unit        string
	Description string
}

// McDocData holds every parsed McDoc section.
type McDocData struct {
	InfoFields map[string]string
	InfoOrder  []string
	ShortDesc  []string
	DescLines  []string
	Parameters map[string]McDocEntry
	ParamOrder []string
	LinkLines  []string
}

// NewMcDocData returns an empty header.
func NewMcDocData() *McDocData {
	return &McDocData{
		InfoFields: make(map[string]string),
		Parameters: make(map[string]McDocEntry),
	}
}

// Matches a parameter entry of the form `name : [unit]? description`.
var mcdocParamPattern = regexp.MustCompile(
	`^\s*(?P<name>[a-zA-Z_][a-zA-Z0-9_]*)\s*:\s*(?:\[(?P<unit>[^\]]*)\])?\s*(?P<desc>.*?)\s*$`)

// ALL-CAPS subsection headings such as INPUT PARAMETERS: are skipped.
var mcdocHeadingPattern = regexp.MustCompile(`^[A-Z][A-Z0-9 _]*:?\s*$`)

// Key: value lines in the %I section.
var mcdocInfoFieldPattern = regexp.MustCompile(`^(?P<key>[A-Za-z][A-Za-z0-9 _]*):\s*(?P<value>.*)$`)

// cleanBlockComment strips the /* */ delimiters and the leading `*` of
// every interior line.
func cleanBlockComment(comment string) string {
	start := strings.Index(comment, "/*")
	end := strings.LastIndex(comment, "*/")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	raw := comment[start+2 : end]
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "*") {
			stripped = stripped[1:]
			stripped = strings.TrimPrefix(stripped, " ")
		}
		lines = append(lines, stripped)
	}
	return strings.Join(lines, "\n")
}

// firstBlockComment extracts the first /* */ comment of a full source.
func firstBlockComment(source string) string {
	start := strings.Index(source, "/*")
	if start < 0 {
		return ""
	}
	end := strings.Index(source[start:], "*/")
	if end < 0 {
		return ""
	}
	return source[start : start+end+2]
}

// ParseMcDoc parses the McDoc header of a full source text, returning
// parameter metadata only. A missing or malformed header yields an empty
// map.
func ParseMcDoc(source string) map[string]McDocEntry {
	data := ParseMcDocFull(firstBlockComment(source))
	return data.Parameters
}

// ParseMcDocFull parses every section of a /* */ McDoc comment.
func ParseMcDocFull(comment string) *McDocData {
	data := NewMcDocData()
	cleaned := cleanBlockComment(comment)
	if cleaned == "" {
		return data
	}
	section := ""
	for _, line := range strings.Split(cleaned, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") && len(trimmed) >= 2 {
			section = trimmed[:2]
			rest := strings.TrimSpace(trimmed[2:])
			if rest != "" {
				data.addLine(section, rest)
			}
			continue
		}
		if section != "" {
			data.addLine(section, line)
		}
	}
	return data
}

func (d *McDocData) addLine(section, line string) {
	switch section {
	case "%I":
		text := strings.TrimSpace(line)
		if m := mcdocInfoFieldPattern.FindStringSubmatch(text); m != nil {
			key := strings.TrimSpace(m[1])
			if _, ok := d.InfoFields[key]; !ok {
				d.InfoOrder = append(d.InfoOrder, key)
			}
			d.InfoFields[key] = strings.TrimSpace(m[2])
		} else if text != "" {
			d.ShortDesc = append(d.ShortDesc, text)
		}
	case "%D":
		d.DescLines = append(d.DescLines, line)
	case "%P":
		text := strings.TrimSpace(line)
		if text == "" || mcdocHeadingPattern.MatchString(text) {
			return
		}
		m := mcdocParamPattern.FindStringSubmatch(text)
		if m == nil {
			return
		}
		name := m[1]
		if _, ok := d.Parameters[name]; !ok {
			d.ParamOrder = append(d.ParamOrder, name)
		}
		d.Parameters[name] = McDocEntry{
			Unit:        strings.TrimSpace(m[2]),
			Description: strings.TrimSpace(m[3]),
		}
	case "%L":
		if text := strings.TrimSpace(line); text != "" {
			d.LinkLines = append(d.LinkLines, text)
		}
	}
}

const (
	mcdocSepOpen  = "/*" + "******************************************************************************"
	mcdocSepClose = "*******************************************************************************" + "/"
	mcdocTODO     = "TODO"
)

// mcdocKnownInfoKeys are emitted on fixed lines of the %I block.
var mcdocKnownInfoKeys = map[string]struct{}{
	"Written by": {}, "Date": {}, "Origin": {},
}

// BuildCanonicalMcDoc renders the canonical McDoc header for a
// component. Existing field values, descriptions, and parameter entries
// are preserved; parameters absent from the component are dropped and
// undocumented parameters appear with empty unit and description.
func BuildCanonicalMcDoc(compName string, existing *McDocData, inputParams, outputParams []string) string {
	ex := existing
	if ex == nil {
		ex = NewMcDocData()
	}
	info := func(key string) string {
		if v, ok := ex.InfoFields[key]; ok && v != "" {
			return v
		}
		return mcdocTODO
	}

	lines := []string{
		mcdocSepOpen,
		"*",
		"* Component: " + compName,
		"*",
		"* %I",
		"* Written by: " + info("Written by"),
		"* Date: " + info("Date"),
		"* Origin: " + info("Origin"),
	}
	for _, key := range ex.InfoOrder {
		if _, known := mcdocKnownInfoKeys[key]; !known {
			lines = append(lines, "* "+key+": "+ex.InfoFields[key])
		}
	}
	lines = append(lines, "*")
	short := ""
	for _, s := range ex.ShortDesc {
		if strings.TrimSpace(s) != "" {
			short = s
			break
		}
	}
	if short == "" {
		short = "(" + mcdocTODO + " - add a one-line description)"
	}
	lines = append(lines, "* "+short, "*", "* %D")
	described := false
	for _, dl := range ex.DescLines {
		if strings.TrimSpace(dl) != "" {
			lines = append(lines, "* "+dl)
			described = true
		}
	}
	if !described {
		lines = append(lines, "* "+mcdocTODO+": Add a detailed description.")
	}
	lines = append(lines, "*", "* %P")
	if len(inputParams) > 0 {
		lines = append(lines, "* INPUT PARAMETERS:", "*")
		lines = appendMcDocParamLines(lines, inputParams, ex.Parameters)
		lines = append(lines, "*")
	}
	if len(outputParams) > 0 {
		lines = append(lines, "* OUTPUT PARAMETERS:", "*")
		lines = appendMcDocParamLines(lines, outputParams, ex.Parameters)
		lines = append(lines, "*")
	}
	if len(ex.LinkLines) > 0 {
		lines = append(lines, "* %L")
		for _, ll := range ex.LinkLines {
			lines = append(lines, "* "+ll)
		}
		lines = append(lines, "*")
	}
	lines = append(lines, "* %E", mcdocSepClose)
	return strings.Join(lines, "\n") + "\n"
}

// appendMcDocParamLines formats parameter lines column-aligned on the
// name and [unit] fields.
func appendMcDocParamLines(lines []string, names []string, existing map[string]McDocEntry) []string {
	type entry struct {
		name, unit, desc string
	}
	entries := make([]entry, 0, len(names))
	nameW, unitW := 0, 0
	for _, name := range names {
		doc := existing[name]
		unit := "[]"
		if doc.Unit != "" {
			unit = "[" + doc.Unit + "]"
		}
		entries = append(entries, entry{name: name, unit: unit, desc: doc.Description})
		if len(name) > nameW {
			nameW = len(name)
		}
		if len(unit) > unitW {
			unitW = len(unit)
		}
	}
	for _, e := range entries {
		col := padRight(e.name, nameW) + ": " + padRight(e.unit, unitW)
		line := "* " + col
		if e.desc != "" {
			line += "  " + e.desc
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return lines
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// CheckMcDocParams lists informational mismatch warnings between the
// documented and declared parameter sets.
func CheckMcDocParams(existing *McDocData, inputParams, outputParams []string) []string {
	if existing == nil {
		return []string{"McDoc header is missing"}
	}
	declared := make(map[string]struct{})
	for _, n := range inputParams {
		declared[n] = struct{}{}
	}
	for _, n := range outputParams {
		declared[n] = struct{}{}
	}
	var warnings []string
	for _, n := range sortedKeys(declared) {
		if _, ok := existing.Parameters[n]; !ok {
			warnings = append(warnings, "parameter "+n+" is not documented in the McDoc header")
		}
	}
	documented := make(map[string]struct{})
	for n := range existing.Parameters {
		documented[n] = struct{}{}
	}
	for _, n := range sortedKeys(documented) {
		if _, ok := declared[n]; !ok {
			warnings = append(warnings, "McDoc documents "+n+" which is not a known parameter")
		}
	}
	return warnings
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
