package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3sync/config"
	"s3sync/internal/models"
	"s3sync/internal/pathspec"
	"s3sync/internal/testutil"
)

// execute runs the command line with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})

	var err error
	stdout := captureStdout(t, func() {
		err = Execute(&config.Config{})
	})
	return stdout, stderr.String(), err
}

func TestSyncCommand_InvalidPath(t *testing.T) {
	stdout, stderr, err := execute(t, "sync", "my-bucket/prefix", t.TempDir())

	assert.ErrorIs(t, err, pathspec.ErrInvalidPathFormat)
	assert.Contains(t, stdout, `"command": "sync"`)
	assert.Equal(t, 1, strings.Count(stdout, `"error"`))
	assert.NotContains(t, stderr, "Usage:")
}

func TestExecute_PrintsUsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"missing local path", []string{"sync", "s3://bucket"}, "accepts 2 arg(s), received 1"},
		{"bad flag value", []string{"sync", "s3://bucket", "out", "--concurrency", "abc"}, "invalid argument"},
		{"unknown command", []string{"bogus"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tt.args...)
			require.Error(t, err)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			assert.Contains(t, resp.Error, tt.message)
			assert.Contains(t, stderr, "Usage:")
		})
	}
}

func TestPrintResult_KeepsPartialResult(t *testing.T) {
	var out bytes.Buffer
	result := &models.SyncResult{BucketName: "b", ObjectsTransferred: 3}

	var err error
	captureStdout(t, func() {
		err = printResult(&out, result, fmt.Errorf("sync interrupted: %w", context.Canceled))
	})
	assert.ErrorIs(t, err, context.Canceled)

	var printed models.SyncResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, 3, printed.ObjectsTransferred)
}

func TestPrintResult_Success(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printResult(&out, &models.SyncResult{BucketName: "b"}, nil))
	assert.Contains(t, out.String(), `"bucket_name": "b"`)
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestWithOverrides(t *testing.T) {
	base := &config.Config{Region: "eu-west-1", ApiURL: "http://a", Concurrency: 4, PartSizeMB: 8}

	got := withOverrides(base, "us-east-1", "", 16)
	assert.Equal(t, "us-east-1", got.Region)
	assert.Equal(t, "http://a", got.ApiURL)
	assert.Equal(t, 16, got.Concurrency)
	assert.Equal(t, 8, got.PartSizeMB)

	assert.Equal(t, "eu-west-1", base.Region, "base config must not change")
	assert.Equal(t, 4, withOverrides(base, "", "", 0).Concurrency)
	assert.NotNil(t, withOverrides(nil, "", "", 0))
}

func TestSyncTo(t *testing.T) {
	bucket := testutil.NewBucket().
		Put("site/index.html", "<html></html>").
		Put("site/css/main.css", "body{}").
		Put("site", "flat object")

	local := filepath.Join(t.TempDir(), "out")
	conf := &config.Config{Concurrency: 2, PartSizeMB: 1, PartConcurrency: 2}
	var out bytes.Buffer

	result, err := syncTo(context.Background(), bucket.Client(), conf, pathspec.PathSpec{Container: "web"}, local, &out, false, false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalObjects)
	assert.Empty(t, result.ObjectsFailed)
	assert.Len(t, result.Conflicts, 1)

	content, err := os.ReadFile(filepath.Join(local, "site", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(content))

	text := out.String()
	assert.Contains(t, text, "  Bucket: web\n")
	assert.Contains(t, text, "  Prefix: root\n")
	assert.Contains(t, text, "Found 3 objects")
	assert.Contains(t, text, "Completed in")
}

func TestSyncTo_EmptyQuiet(t *testing.T) {
	local := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer

	result, err := syncTo(context.Background(), testutil.NewBucket().Client(), &config.Config{}, pathspec.PathSpec{Container: "b", Prefix: "none"}, local, &out, true, false)
	require.NoError(t, err)

	assert.True(t, result.NothingToSync)
	assert.Contains(t, out.String(), "  Prefix: none\n")
	assert.NotContains(t, out.String(), "No objects found")
	assert.DirExists(t, local)
}
