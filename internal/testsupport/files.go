package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile creates path holding size filler bytes, at least one.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteStubBinary writes an executable named name into dir that prints
// stdout and exits 0 whatever its arguments.
func WriteStubBinary(t testing.TB, dir, name, stdout string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	script := "#!/bin/sh\n"
	if stdout != "" {
		script += "cat <<'EOF'\n" + strings.TrimRight(stdout, "\n") + "\nEOF\n"
	}
	script += "exit 0\n"
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// componentListing renders names as ffmpeg -filters / -encoders rows.
func componentListing(names ...string) string {
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, " A.... %-20s stub\n", name)
	}
	return b.String()
}
