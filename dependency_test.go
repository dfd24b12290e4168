// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"strings"
	"testing"
)

func TestConfigFallbackOrder(t *testing.T) {
	cfg := NewConfig()
	cfg.RunCommand = func(args []string) (string, error) {
		if args[0] == "ncrystal-config" {
			return "-lNCrystal -I/opt/ncrystal/include\n", nil
		}
		return "", fmt.Errorf("%s not found", args[0])
	}

	if got := cfg.Fallback("ncrystal"); got != "-lNCrystal -I/opt/ncrystal/include" {
		t.Errorf("config command output got %q", got)
	}
	if cfg.Misses != 1 {
		t.Errorf("misses got %d, want 1", cfg.Misses)
	}
	// Second lookup hits the cache without re-running the command.
	cfg.RunCommand = func([]string) (string, error) {
		t.Error("command re-run despite cached value")
		return "", nil
	}
	cfg.Fallback("ncrystal")
	if cfg.Hits != 1 {
		t.Errorf("hits got %d, want 1", cfg.Hits)
	}

	// Unresolvable keys fail over to -lkey.
	cfg2 := NewConfig()
	cfg2.RunCommand = func(args []string) (string, error) {
		return "", fmt.Errorf("%s not found", args[0])
	}
	if got := cfg2.Fallback("mystery"); got != "-lmystery" {
		t.Errorf("failsafe got %q, want -lmystery", got)
	}
}

func TestNCrystalWindowsFlags(t *testing.T) {
	// Backslashes in a configured flag value must survive keyword
	// replacement verbatim.
	windows := ` /IC:\hosted\NCrystal.lib`
	cfg := NewConfig()
	cfg.Flags["ncrystal"] = windows

	instr := NewInstr()
	instr.Name = "win"
	got := instr.replaceKeywords("@NCRYSTALFLAGS@", cfg, nil)
	if got != windows {
		t.Errorf("backslashes corrupted: %q != %q", got, windows)
	}
}

func TestDecodedFlags(t *testing.T) {
	t.Setenv("MCCODE_TEST_DIR", "/opt/data")
	instr := NewInstr()
	instr.Name = "deps"
	instr.AddFlags(
		"-DEXTRA ENV(MCCODE_TEST_DIR)/lib",
		"CMD(mcpl-config --show linkflags)",
		"@MCPLFLAGS@",
	)
	cfg := NewConfig()
	cfg.Flags["mcpl"] = "-lmcpl"
	cfg.RunCommand = func(args []string) (string, error) {
		if args[0] == "mcpl-config" {
			return "-L/opt/mcpl/lib -lmcpl\n", nil
		}
		return "", fmt.Errorf("%s not found", args[0])
	}

	flags, err := instr.DecodedFlags(cfg)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(flags, " | ")
	for _, want := range []string{"-DEXTRA /opt/data/lib", "-L/opt/mcpl/lib -lmcpl", "-lmcpl"} {
		if !strings.Contains(joined, want) {
			t.Errorf("decoded flags %q missing %q", joined, want)
		}
	}
}

func TestCmdBackslashOutputPreserved(t *testing.T) {
	instr := NewInstr()
	cfg := NewConfig()
	cfg.RunCommand = func(args []string) (string, error) {
		return `C:\mcpl\bin` + "\n", nil
	}
	got, err := instr.replaceEnvGetpathCmd("CMD(where mcpl)", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != `C:\mcpl\bin` {
		t.Errorf("CMD backslashes corrupted: %q", got)
	}
}

func TestCmdMultiLineOutputRejected(t *testing.T) {
	instr := NewInstr()
	cfg := NewConfig()
	cfg.RunCommand = func(args []string) (string, error) {
		return "one\ntwo\n", nil
	}
	if _, err := instr.replaceEnvGetpathCmd("CMD(ls)", cfg); err == nil {
		t.Error("multi-line CMD output should be rejected")
	}
}

func TestDirectiveParenthesesValidation(t *testing.T) {
	instr := NewInstr()
	cfg := NewConfig()
	if _, err := instr.replaceEnvGetpathCmd("ENV MCCODE", cfg); err == nil {
		t.Error("missing opening parenthesis should fail")
	}
	if _, err := instr.replaceEnvGetpathCmd("ENV(MCCODE", cfg); err == nil {
		t.Error("missing closing parenthesis should fail")
	}
}

func TestUniqueFlagsAddsFunnel(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
CPU COMPONENT b = Arm() AT (0,0,1) RELATIVE a
`)
	instr.AddFlags("-lm", "-lm")
	flags := instr.UniqueFlags()
	lm, funnel := 0, 0
	for _, f := range flags {
		switch f {
		case "-lm":
			lm++
		case "-DFUNNEL":
			funnel++
		}
	}
	if lm != 1 {
		t.Errorf("-lm deduplicated to %d entries", lm)
	}
	if funnel != 1 {
		t.Error("-DFUNNEL missing for a CPU-pinned instance")
	}
}
