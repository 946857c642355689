package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), "test", "scripturelens", args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestFixtureExportConcordanceSearch(t *testing.T) {
	data := t.TempDir()
	out := filepath.Join(t.TempDir(), "app_data")

	stdout, _, err := run(t, "fixture", filepath.Join(data, "demo-one.sqlite"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Demo database written")

	stdout, _, err = run(t, "all",
		"--data-dir", data, "--output-dir", out,
		"--download-dictionaries=false", "--search-index")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Projects: 1 exported, 0 failed")
	assert.Contains(t, stdout, "NT Summary:")
	assert.Contains(t, stdout, "Unique lemmas: 2")
	assert.Contains(t, stdout, "OT Summary:")

	layout := corpus.Layout{Root: out}
	assert.FileExists(t, layout.IndexPath())
	assert.FileExists(t, layout.ConcordancePath(bible.NewTestament))
	assert.DirExists(t, layout.SearchIndexPath(bible.NewTestament))

	stdout, _, err = run(t, "search", "--output-dir", out, "word")
	require.NoError(t, err)
	assert.Contains(t, stdout, "NT\tλόγος\t1\tword")
}

func TestExportWithoutDatabases(t *testing.T) {
	stdout, _, err := run(t, "export", "--data-dir", t.TempDir(), "--output-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No databases found")
}

func TestExportUnwritableOutputFails(t *testing.T) {
	data := t.TempDir()
	_, _, err := run(t, "fixture", filepath.Join(data, "demo-one.sqlite"))
	require.NoError(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, stderr, err := run(t, "export", "--data-dir", data, "--output-dir", filepath.Join(blocker, "out"),
		"--download-dictionaries=false")
	assert.Error(t, err)
	assert.Contains(t, stderr, "Error:")
}

func TestInvalidSettingsFail(t *testing.T) {
	_, _, err := run(t, "export", "--workers", "0")
	assert.ErrorContains(t, err, "workers")

	_, _, err = run(t, "export", "--books", "70")
	assert.ErrorContains(t, err, "books")
}

func TestSearchWithoutIndex(t *testing.T) {
	_, _, err := run(t, "search", "--output-dir", t.TempDir(), "word")
	assert.ErrorContains(t, err, "no search index")
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "test\n", stdout)
}

func TestRunMainExitCode(t *testing.T) {
	code := -1
	runMain([]string{"scripturelens", "no-such-command"}, func(c int) { code = c })
	assert.Equal(t, 1, code)

	code = -1
	runMain([]string{"scripturelens", "fixture", filepath.Join(t.TempDir(), "demo.sqlite")}, func(c int) { code = c })
	assert.Equal(t, -1, code)
}
