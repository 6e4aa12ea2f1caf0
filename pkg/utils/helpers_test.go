package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRelPath(t *testing.T) {
	cases := map[string]string{
		"main.tf":              "main.tf",
		"./main.tf":            "main.tf",
		"modules\\s3\\main.tf": "modules/s3/main.tf",
		"modules/s3/":          "modules/s3",
		"//double/slash":       "/double/slash",
		"Main.TF":              "Main.TF",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeRelPath(in), "input %q", in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "abc", TruncateString("abc", 0))
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(2, time.Millisecond, func() error {
		calls++
		return errors.New("persistent")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestWalkFiles(t *testing.T) {
	dir := t.TempDir()
	mk := func(rel string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	mk("main.tf")
	mk(".github/workflows/ci.yaml")
	mk(".git/HEAD")

	files, err := WalkFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotContains(t, f, string(filepath.Separator)+".git"+string(filepath.Separator))
	}
}

func TestWalkFilesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.tf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	files, err := WalkFiles(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}
