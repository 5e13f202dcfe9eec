package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// devRoot is the directory under os.TempDir() that sandboxed stores live in.
const devRoot = "productbaker-dev"

// IsDevRun reports whether the process was built by `go run` or `go test`.
// Both place the binary in a temporary directory; test binaries also end
// in ".test".
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveStorePath returns the directory a store should use. With
// forceTemp, paths outside the temp directory are re-rooted under
// <tmp>/productbaker-dev/<base name> so development runs never write to
// the user's workspace.
func ResolveStorePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	// Already inside the temp dir (e.g. t.TempDir()): trust it.
	clean := filepath.Clean(userPath)
	if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && filepath.IsAbs(clean) && !strings.HasPrefix(rel, "..") {
		return clean
	}

	name := filepath.Base(clean)
	if userPath == "" || name == "." || name == string(os.PathSeparator) {
		name = "default"
	}
	return filepath.Join(os.TempDir(), devRoot, name)
}
