// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func diskReader(t *testing.T, files map[string]string) (*Reader, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	reader := NewReader(&Options{
		Registries: []Registry{NewLocalRegistry("disk", root, 5)},
	})
	return reader, root
}

func TestCacheMemoryHit(t *testing.T) {
	ClearComponentCache()
	reader, root := diskReader(t, map[string]string{"optics/Arm.comp": armComp})
	first, err := reader.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}

	// A second reader resolves the identical object from the memory
	// layer.
	reader2 := NewReader(&Options{
		Registries: []Registry{NewLocalRegistry("disk", root, 5)},
	})
	second, err := reader2.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("memory cache did not serve the shared component")
	}
}

func TestCacheStaleOnModification(t *testing.T) {
	ClearComponentCache()
	reader, root := diskReader(t, map[string]string{"optics/Arm.comp": armComp})
	first, err := reader.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}

	// Rewrite the component with a new parameter and a newer mtime.
	path := filepath.Join(root, "optics", "Arm.comp")
	edited := "DEFINE COMPONENT Arm\nSETTING PARAMETERS (length=1)\nEND\n"
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	reader2 := NewReader(&Options{
		Registries: []Registry{NewLocalRegistry("disk", root, 5)},
	})
	second, err := reader2.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("stale cache entry served after the source changed")
	}
	if !second.HasParameter("length") {
		t.Error("re-parse did not pick up the edited source")
	}
}

func TestCacheSidecarWrittenAndUsed(t *testing.T) {
	ClearComponentCache()
	reader, root := diskReader(t, map[string]string{"optics/Arm.comp": armComp})
	if _, err := reader.GetComponent("Arm"); err != nil {
		t.Fatal(err)
	}
	sidecar := filepath.Join(root, "optics", "Arm.comp.json")
	if _, err := os.Stat(sidecar); err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}

	// Flush memory; the sidecar alone must satisfy the next load.
	ClearComponentCache()
	reader2 := NewReader(&Options{
		Registries: []Registry{NewLocalRegistry("disk", root, 5)},
	})
	comp, err := reader2.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}
	if comp.Name != "Arm" {
		t.Errorf("sidecar decode produced %q", comp.Name)
	}
}

func TestCacheCorruptSidecarRecovered(t *testing.T) {
	ClearComponentCache()
	reader, root := diskReader(t, map[string]string{"optics/Arm.comp": armComp})
	sidecar := filepath.Join(root, "optics", "Arm.comp.json")
	if err := os.WriteFile(sidecar, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(sidecar, future, future); err != nil {
		t.Fatal(err)
	}

	// The corrupt sidecar is silently discarded and the source parsed.
	comp, err := reader.GetComponent("Arm")
	if err != nil {
		t.Fatalf("corrupt sidecar surfaced an error: %v", err)
	}
	if comp.Name != "Arm" {
		t.Errorf("recovered component got %q", comp.Name)
	}
	if _, err := os.Stat(sidecar); err == nil {
		raw, _ := os.ReadFile(sidecar)
		if string(raw) == "{not json" {
			t.Error("corrupt sidecar left in place")
		}
	}
}

func TestSourceOverride(t *testing.T) {
	ClearComponentCache()
	reader, _ := diskReader(t, map[string]string{"optics/Arm.comp": armComp})
	override := "DEFINE COMPONENT Arm\nSETTING PARAMETERS (angle=90)\nEND\n"
	reader.InjectSource("Arm", override)

	// Contents prefers the override over the on-disk file.
	content, err := reader.Contents("Arm", ".comp")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != override {
		t.Errorf("override not returned by Contents")
	}
	comp, err := reader.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}
	if !comp.HasParameter("angle") {
		t.Error("injected source not published")
	}

	// Eviction restores the on-disk definition.
	reader.Evict("Arm")
	content, err = reader.Contents("Arm", ".comp")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) == override {
		t.Error("override survived eviction")
	}
}

func TestInjectBrokenSourceKeepsPrevious(t *testing.T) {
	ClearComponentCache()
	reader, _ := diskReader(t, map[string]string{"optics/Arm.comp": armComp})
	comp, err := reader.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}
	reader.InjectSource("Arm", "DEFINE COMPONENT (broken")
	after, err := reader.GetComponent("Arm")
	if err != nil {
		t.Fatal(err)
	}
	if after != comp {
		t.Error("broken injected source replaced the known definition")
	}
}
