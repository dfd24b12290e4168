// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// Config resolves @XXXFLAGS@ keys in DEPENDENCY strings. Lookups fall
// back to running `xxx-config --show buildflags` and finally to `-lxxx`;
// every result is cached so expensive commands run once. Hits and misses
// are observable for testing.
type Config struct {
	// Flags caches resolved key values.
	Flags map[string]string

	// RunCommand executes a resolver command and returns its stdout.
	// The default implementation uses os/exec; tests inject stubs.
	RunCommand func(args []string) (string, error)

	// Hits and Misses count cache behavior.
	Hits   int
	Misses int
}

// NewConfig returns a Config with an empty cache and the default command
// runner.
func NewConfig() *Config {
	return &Config{
		Flags:      make(map[string]string),
		RunCommand: runProgram,
	}
}

// runProgram runs a command without shell interpretation and returns its
// standard output.
func runProgram(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("empty command")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return "", fmt.Errorf("%s not found", args[0])
	}
	cmd := exec.Command(args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("evaluating %q produced error: %v", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Fallback resolves key (the lower-case stem of @KEYFLAGS@): cache
// first, then `key-config --show buildflags`, then `-lkey`. The result
// is always stored back into the cache.
func (c *Config) Fallback(key string) string {
	if v, ok := c.Flags[key]; ok {
		c.Hits++
		return v
	}
	c.Misses++
	out, err := c.RunCommand([]string{key + "-config", "--show", "buildflags"})
	if err != nil {
		out = "-l" + key
	}
	out = strings.TrimRight(out, "\n")
	c.Flags[key] = out
	return out
}

var keywordPattern = regexp.MustCompile(`@(\w+)@`)

// replaceKeywords substitutes @XXXFLAGS@ and @MCCODE_LIB@ keys in one
// dependency string. Replacement values are inserted verbatim, so
// backslashes in Windows paths survive.
func (in *Instr) replaceKeywords(flag string, cfg *Config, logger interface{ Warnf(string, ...interface{}) }) string {
	if strings.Contains(flag, "@MCCODE_LIB@") {
		if logger != nil {
			logger.Warnf("the instrument %s uses @MCCODE_LIB@ dependencies which no longer work", in.Name)
		}
		flag = strings.ReplaceAll(flag, "@MCCODE_LIB@", ".")
	}
	for _, match := range keywordPattern.FindAllStringSubmatch(flag, -1) {
		key := match[1]
		lower := strings.ToLower(key)
		if !strings.HasSuffix(lower, "flags") {
			if logger != nil {
				logger.Warnf("unknown keyword @%s@ in dependency string", key)
			}
			continue
		}
		replacement := cfg.Fallback(strings.TrimSuffix(lower, "flags"))
		flag = strings.ReplaceAll(flag, "@"+key+"@", replacement)
	}
	return flag
}

// replaceDirective substitutes every START(...) occurrence using the
// given replacer. Nesting of the same directive is rejected; backslashes
// in replacement output are preserved verbatim.
func replaceDirective(flags, start string, replacer func(string) (string, error)) (string, error) {
	for {
		idx := strings.Index(flags, start)
		if idx < 0 {
			return flags, nil
		}
		rest := flags[idx+len(start):]
		if len(rest) == 0 || rest[0] != '(' {
			return "", fmt.Errorf("missing opening parenthesis in dependency string after %s", start)
		}
		closing := strings.IndexByte(rest, ')')
		if closing < 0 {
			return "", fmt.Errorf("missing closing parenthesis in dependency string after %s", start)
		}
		arg := rest[1:closing]
		if strings.Contains(arg, start) {
			return "", fmt.Errorf("nested %s in dependency string", start)
		}
		value, err := replacer(arg)
		if err != nil {
			return "", err
		}
		flags = flags[:idx] + value + rest[closing+1:]
	}
}

// replaceEnvGetpathCmd substitutes ENV(NAME), GETPATH(file), and
// CMD(prog args) directives in one dependency string.
func (in *Instr) replaceEnvGetpathCmd(flags string, cfg *Config) (string, error) {
	evalEnv := func(name string) (string, error) {
		return os.Getenv(name), nil
	}
	getPath := func(file string) (string, error) {
		for _, registry := range in.Registries {
			if registry.Known(file, "") {
				if p, err := registry.Path(file, ""); err == nil {
					return p, nil
				}
			}
		}
		return "", nil
	}
	evalCmd := func(command string) (string, error) {
		out, err := cfg.RunCommand(strings.Fields(command))
		if err != nil {
			return "", fmt.Errorf("calling %s resulted in error: %w", command, err)
		}
		var lines []string
		for _, line := range strings.Split(out, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) > 1 {
			return "", fmt.Errorf("calling %s produced more than one line of output", command)
		}
		if len(lines) == 0 {
			return "", nil
		}
		return lines[0], nil
	}

	var err error
	for _, step := range []struct {
		key string
		fn  func(string) (string, error)
	}{
		{"ENV", evalEnv},
		{"GETPATH", getPath},
		{"CMD", evalCmd},
	} {
		if flags, err = replaceDirective(flags, step.key, step.fn); err != nil {
			return "", err
		}
	}
	return flags, nil
}

// DecodedFlags resolves every dependency flag of the instrument:
// deduplicated flags have their @KEY@ keywords replaced through the
// config cache, then ENV/GETPATH/CMD directives evaluated.
func (in *Instr) DecodedFlags(cfg *Config) ([]string, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	var out []string
	for _, flag := range in.UniqueFlags() {
		replaced := in.replaceKeywords(flag, cfg, nil)
		decoded, err := in.replaceEnvGetpathCmd(replaced, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}
