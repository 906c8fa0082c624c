package securefs

import (
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *SecureFS {
	t.Helper()
	sfs, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sfs.Close() })
	return sfs
}

func TestValidateRelativePath(t *testing.T) {
	sfs := newTestFS(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple", "uploads/a.png", filepath.Join("uploads", "a.png"), nil},
		{"dot segments", "uploads/./x/../a.png", filepath.Join("uploads", "a.png"), nil},
		{"inner parent stays inside", "a/../b", "b", nil},
		{"parent escape", "../etc/passwd", "", ErrPathTraversal},
		{"bare parent", "..", "", ErrPathTraversal},
		{"nested escape", "uploads/../../x", "", ErrPathTraversal},
		{"absolute", "/etc/passwd", "", ErrInvalidPath},
		{"empty", "", "", ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sfs.ValidateRelativePath(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMkdirAllIsIdempotent(t *testing.T) {
	sfs := newTestFS(t)

	require.NoError(t, sfs.MkdirAll("uploads/nested", 0o750))
	require.NoError(t, sfs.MkdirAll("uploads/nested", 0o750))
	require.NoError(t, sfs.MkdirAll(".", 0o750))

	info, err := os.Stat(filepath.Join(sfs.BaseDir(), "uploads", "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.ErrorIs(t, sfs.MkdirAll("../outside", 0o750), ErrPathTraversal)
}

func TestWriteReadRemove(t *testing.T) {
	sfs := newTestFS(t)
	require.NoError(t, sfs.MkdirAll("uploads", 0o750))

	require.NoError(t, sfs.WriteFile("uploads/a.txt", []byte("first"), 0o640))
	require.NoError(t, sfs.WriteFile("uploads/a.txt", []byte("second"), 0o640))

	f, err := sfs.Open("uploads/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	err = sfs.WriteNewFile("uploads/a.txt", []byte("third"), 0o640)
	assert.ErrorIs(t, err, fs.ErrExist)

	exists, err := sfs.Exists("uploads/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, sfs.Remove("uploads/a.txt"))
	exists, err = sfs.Exists("uploads/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenameReplacesTarget(t *testing.T) {
	sfs := newTestFS(t)
	require.NoError(t, sfs.MkdirAll("uploads", 0o750))
	require.NoError(t, sfs.WriteFile("uploads/a.txt", []byte("old"), 0o640))
	require.NoError(t, sfs.WriteFile("uploads/.a.txt.tmp", []byte("new"), 0o640))

	require.NoError(t, sfs.Rename("uploads/.a.txt.tmp", "uploads/a.txt"))

	data, err := os.ReadFile(filepath.Join(sfs.BaseDir(), "uploads", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	exists, err := sfs.Exists("uploads/.a.txt.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, sfs.Rename("uploads/a.txt", "../a.txt"), ErrPathTraversal)
	assert.ErrorIs(t, sfs.Rename("/etc/passwd", "uploads/a.txt"), ErrInvalidPath)
}

func TestSymlinkEscapeIsBlocked(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o600))

	sfs := newTestFS(t)
	if err := os.Symlink(outside, filepath.Join(sfs.BaseDir(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := sfs.Open("link/secret.txt")
	assert.Error(t, err)
}

func TestServeRelativeFile(t *testing.T) {
	sfs := newTestFS(t)
	require.NoError(t, sfs.MkdirAll("uploads", 0o750))
	require.NoError(t, sfs.WriteFile("uploads/pic.png", []byte("png-bytes"), 0o640))
	require.NoError(t, sfs.MkdirAll("uploads/dir", 0o750))

	e := echo.New()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing file", "uploads/pic.png", http.StatusOK},
		{"missing file", "uploads/none.png", http.StatusNotFound},
		{"traversal", "../x.png", http.StatusBadRequest},
		{"directory", "uploads/dir", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/static/"+tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := sfs.ServeRelativeFile(c, tt.path)
			if tt.wantStatus == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, "png-bytes", rec.Body.String())
				assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.wantStatus, he.Code)
		})
	}
}
