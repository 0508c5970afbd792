package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome("~"); err != nil || got != home {
		t.Fatalf("got %q err=%v, want %q", got, err, home)
	}
	got, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if want := filepath.Join(home, "models"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "present")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !PathExists(f) {
		t.Fatalf("expected %q to exist", f)
	}
	if PathExists(filepath.Join(dir, "absent")) {
		t.Fatalf("expected missing path to not exist")
	}
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f.gguf")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsRegularFile(f) {
		t.Fatalf("expected regular file")
	}
	if IsRegularFile(dir) {
		t.Fatalf("directory reported as regular file")
	}
	if IsRegularFile(filepath.Join(dir, "absent")) {
		t.Fatalf("missing path reported as regular file")
	}
}
