package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_EphemeralMode(t *testing.T) {
	tempBase := t.TempDir()
	mgr := NewManager(tempBase, nil)

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	buildDir := mgr.GetPath()
	if buildDir == "" {
		t.Fatal("GetPath() returned empty string")
	}
	if filepath.Base(buildDir) != "build" {
		t.Errorf("Expected build subdirectory, got: %s", buildDir)
	}
	if !strings.Contains(filepath.Base(filepath.Dir(buildDir)), "bundlekit-") {
		t.Errorf("Expected bundlekit- prefixed parent, got: %s", buildDir)
	}
	if _, err := os.Stat(buildDir); os.IsNotExist(err) {
		t.Errorf("Build directory does not exist: %s", buildDir)
	}
	if !mgr.Ephemeral() {
		t.Error("Expected ephemeral manager")
	}

	root := filepath.Dir(buildDir)
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("Build directory still exists after cleanup: %s", root)
	}
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("second Cleanup() failed: %v", err)
	}
}

func TestManager_PersistentMode(t *testing.T) {
	dir := t.TempDir()
	mgr := NewPersistentManager(dir, nil)

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if mgr.GetPath() != resolved {
		t.Errorf("Expected path %s, got: %s", resolved, mgr.GetPath())
	}

	marker := filepath.Join(mgr.GetPath(), "marker.txt")
	if err := os.WriteFile(marker, []byte("persistent"), 0o600); err != nil {
		t.Fatalf("Failed to create marker file: %v", err)
	}
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		t.Errorf("Marker file was removed from supplied build directory")
	}
}

func TestManager_PersistentModeSymlink(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "resolved")
	if err := os.Mkdir(target, 0o750); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	mgr := NewPersistentManager(link, nil)
	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(target)
	if mgr.GetPath() != want {
		t.Errorf("Expected canonical path %s, got %s", want, mgr.GetPath())
	}
}

func TestManager_PersistentModeMissing(t *testing.T) {
	mgr := NewPersistentManager(filepath.Join(t.TempDir(), "absent"), nil)
	err := mgr.Create()
	if err == nil {
		t.Fatal("expected error for missing build directory")
	}
	if !IsNotDir(err) {
		t.Errorf("expected ENOTDIR, got %v", err)
	}
}

func TestWithin(t *testing.T) {
	cases := []struct {
		root, path string
		want       bool
	}{
		{"/build", "/build/a.js", true},
		{"/build", "/build/sub/../a.js", true},
		{"/build", "/build", true},
		{"/build", "/build/../other.js", false},
		{"/build", "/buildx/a.js", false},
		{"/build", "/elsewhere/a.js", false},
	}
	for _, tc := range cases {
		if got := Within(tc.root, tc.path); got != tc.want {
			t.Errorf("Within(%q, %q) = %v, want %v", tc.root, tc.path, got, tc.want)
		}
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.js"), []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "b.js"), []byte("b"), 0o600); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "out", "pkg")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "nested", "b.js"))
	if err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
	if string(data) != "b" {
		t.Errorf("unexpected content %q", data)
	}
}
