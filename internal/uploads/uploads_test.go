package uploads

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
	"github.com/lesionscan/lesionscan/internal/securefs"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{"i contain cool \u00fcml\u00e4uts.txt", "i_contain_cool_umlauts.txt"},
		{`C:\Users\me\mole.JPG`, "C_Users_me_mole.JPG"},
		{"lesion (1).png", "lesion_1.png"},
		{".hidden", "hidden"},
		{"__init__.py", "init__.py"},
		{"...", ""},
		{"", ""},
		{"\u65e5\u672c.png", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func newStore(t *testing.T, opts ...Option) (*Store, *securefs.SecureFS) {
	t.Helper()
	sfs, err := securefs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sfs.Close() })

	store, err := New(sfs, opts...)
	require.NoError(t, err)
	return store, sfs
}

func readStored(t *testing.T, sfs *securefs.SecureFS, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(sfs.BaseDir(), filepath.FromSlash(relPath)))
	require.NoError(t, err)
	return string(data)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestNewCreatesUploadDir(t *testing.T) {
	_, sfs := newStore(t)
	info, err := os.Stat(filepath.Join(sfs.BaseDir(), Dir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveOriginalNamingOverwrites(t *testing.T) {
	store, sfs := newStore(t)

	rel, err := store.Save(context.Background(), "mole.png", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/mole.png", rel)

	rel, err = store.Save(context.Background(), "mole.png", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/mole.png", rel)
	assert.Equal(t, "two", readStored(t, sfs, rel))
}

func TestSaveUniqueNamingNeverOverwrites(t *testing.T) {
	store, sfs := newStore(t, WithNaming(conf.NamingUnique))

	first, err := store.Save(context.Background(), "mole.png", []byte("one"))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "mole.png", []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "uploads/mole-"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.Equal(t, "one", readStored(t, sfs, first))
	assert.Equal(t, "two", readStored(t, sfs, second))
}

func uploadDirEntries(t *testing.T, sfs *securefs.SecureFS) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(sfs.BaseDir(), Dir))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStageDiscardKeepsExistingFile(t *testing.T) {
	store, sfs := newStore(t)

	rel, err := store.Save(context.Background(), "mole.png", []byte("original"))
	require.NoError(t, err)

	pending, err := store.Stage(context.Background(), "mole.png", []byte("replacement"))
	require.NoError(t, err)
	assert.Equal(t, rel, pending.RelPath)
	assert.Equal(t, "original", readStored(t, sfs, rel), "staging must not touch the published file")

	require.NoError(t, pending.Discard())
	assert.Equal(t, "original", readStored(t, sfs, rel))
	assert.Equal(t, []string{"mole.png"}, uploadDirEntries(t, sfs))
}

func TestStageCommitReplacesExistingFile(t *testing.T) {
	store, sfs := newStore(t)

	_, err := store.Save(context.Background(), "mole.png", []byte("original"))
	require.NoError(t, err)

	pending, err := store.Stage(context.Background(), "mole.png", []byte("replacement"))
	require.NoError(t, err)
	require.NoError(t, pending.Commit())

	assert.Equal(t, "replacement", readStored(t, sfs, pending.RelPath))
	assert.Equal(t, []string{"mole.png"}, uploadDirEntries(t, sfs))

	// Discard after Commit leaves the published file alone.
	require.NoError(t, pending.Discard())
	assert.Equal(t, "replacement", readStored(t, sfs, pending.RelPath))
}

func TestStageUniqueDiscardRemovesOnlyNewFile(t *testing.T) {
	store, sfs := newStore(t, WithNaming(conf.NamingUnique))

	first, err := store.Save(context.Background(), "mole.png", []byte("one"))
	require.NoError(t, err)

	pending, err := store.Stage(context.Background(), "mole.png", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first, pending.RelPath)
	assert.Equal(t, "two", readStored(t, sfs, pending.RelPath))

	require.NoError(t, pending.Discard())
	assert.Equal(t, []string{path.Base(first)}, uploadDirEntries(t, sfs))
}

func TestSaveSanitizesTraversal(t *testing.T) {
	store, sfs := newStore(t)

	rel, err := store.Save(context.Background(), "../../evil.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/evil.png", rel)
	assert.Equal(t, "x", readStored(t, sfs, rel))
}

func TestSaveFallbackName(t *testing.T) {
	store, _ := newStore(t)

	rel, err := store.Save(context.Background(), "...", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "uploads/upload.png", rel)

	rel, err = store.Save(context.Background(), "", []byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "uploads/upload.bin", rel)
}

func TestSaveRejectsLowDiskSpace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewUploadMetrics(registry)
	require.NoError(t, err)

	store, sfs := newStore(t,
		WithMinFreeMB(100),
		WithMetrics(m),
		WithFreeSpaceFunc(func(string) (uint64, error) { return 10 * 1024 * 1024, nil }))

	_, err = store.Save(context.Background(), "mole.png", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDiskUsage))

	_, statErr := os.Stat(filepath.Join(sfs.BaseDir(), Dir, "mole.png"))
	assert.True(t, os.IsNotExist(statErr))

	count, err := testutil.GatherAndCount(registry, "uploads_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveCancelledContext(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, "mole.png", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemove(t *testing.T) {
	store, sfs := newStore(t)

	rel, err := store.Save(context.Background(), "mole.png", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Remove(rel))

	_, statErr := os.Stat(filepath.Join(sfs.BaseDir(), filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(statErr))

	err = store.Remove(rel)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	for _, bad := range []string{"config.yaml", "uploads/../config.yaml", "../x"} {
		err := store.Remove(bad)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), bad)
	}
}

func TestServe(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.Save(context.Background(), "mole.png", pngBytes(t))
	require.NoError(t, err)

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/static/uploads/mole.png", http.NoBody)
	rec := httptest.NewRecorder()
	require.NoError(t, store.Serve(e.NewContext(req, rec), "mole.png"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	req = httptest.NewRequest(http.MethodGet, "/static/uploads/x", http.NoBody)
	rec = httptest.NewRecorder()
	err = store.Serve(e.NewContext(req, rec), "../config.yaml")
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
