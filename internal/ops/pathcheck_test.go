package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/weft/internal/config"
	"github.com/hpungsan/weft/internal/errors"
)

func TestValidatePath_EmptyPath(t *testing.T) {
	err := ValidatePath("", PathCheckWrite, ".txt", config.DefaultConfig())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_Traversal(t *testing.T) {
	err := ValidatePath("../../etc/passwd.txt", PathCheckWrite, ".txt", config.DefaultConfig())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_WrongExtension(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{t.TempDir()}
	err := ValidatePath(filepath.Join(cfg.AllowedPaths[0], "out.csv"), PathCheckWrite, ".txt", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_AllowedDir(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.AllowedPaths = []string{dir}

	if err := ValidatePath(filepath.Join(dir, "out.txt"), PathCheckWrite, ".txt", cfg); err != nil {
		t.Fatalf("ValidatePath failed for allowed dir: %v", err)
	}
}

func TestValidatePath_SubdirectoryRejected(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.AllowedPaths = []string{dir}

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	err := ValidatePath(filepath.Join(sub, "out.txt"), PathCheckWrite, ".txt", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST for subdirectory", err)
	}
}

func TestValidatePath_OutsideAllowedDirs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{t.TempDir()}

	err := ValidatePath(filepath.Join(t.TempDir(), "out.txt"), PathCheckWrite, ".txt", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST outside allowed dirs", err)
	}
}

func TestValidatePath_RelativeAllowedPathIgnored(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{"relative/dir"}

	err := ValidatePath("relative/dir/out.txt", PathCheckWrite, ".txt", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST (relative allowed paths ignored)", err)
	}
}

func TestValidatePath_SymlinkFileRejected(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.AllowedPaths = []string{dir}

	target := filepath.Join(dir, "target.txt")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	err := ValidatePath(link, PathCheckWrite, ".txt", cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST for symlink", err)
	}
}

func TestValidatePath_UnsafeSkipsDirChecks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	if err := ValidatePath(filepath.Join(t.TempDir(), "anywhere.txt"), PathCheckWrite, ".txt", cfg); err != nil {
		t.Fatalf("ValidatePath failed with unsafe paths allowed: %v", err)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"simple", "simple"},
		{"a/b\\c", "a-b-c"},
		{"..secret", "secret"},
		{"has\x00null", "hasnull"},
		{"--dashes--", "dashes"},
		{"", "export"},
		{"///", "export"},
	}
	for _, tt := range tests {
		if got := SanitizeForFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
