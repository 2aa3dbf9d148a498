package fixtures

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixturesDir returns the absolute path to the fixtures directory.
func fixturesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}

// CatalogPath returns the absolute path of a wallet catalog fixture.
func CatalogPath(t *testing.T, filename string) string {
	t.Helper()
	path := filepath.Join(fixturesDir(), "catalogs", filename)
	_, err := os.Stat(path)
	require.NoError(t, err, "missing catalog fixture: %s", filename)
	return path
}

// Signature returns a named onboarding signature fixture.
func Signature(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fixturesDir(), "signatures", name+".hex"))
	require.NoError(t, err, "missing signature fixture: %s", name)
	return string(trimNewline(data))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
