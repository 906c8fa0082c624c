package classify

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesionscan/lesionscan/internal/classifier"
	"github.com/lesionscan/lesionscan/internal/imaging"
	"github.com/lesionscan/lesionscan/internal/logger"
)

type fixedPredictor struct{ index int }

func (p fixedPredictor) Predict([]float32) ([]float32, error) {
	scores := make([]float32, classifier.NumClasses)
	scores[p.index] = 1
	return scores, nil
}

func (fixedPredictor) Close() error { return nil }

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	img.Set(3, 3, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestClassifyFile(t *testing.T) {
	clf, err := classifier.New(fixedPredictor{index: 1}, classifier.WithCacheTTL(0))
	require.NoError(t, err)
	defer clf.Close()

	path := filepath.Join(t.TempDir(), "lesion.png")
	writePNG(t, path)

	var out bytes.Buffer
	require.NoError(t, classifyFile(t.Context(), &out, clf, imaging.Normalizer{}, path))

	assert.Contains(t, out.String(), "Prediction: basal cell carcinoma (bcc)")
	assert.Contains(t, out.String(), "100.0%")
	assert.Contains(t, out.String(), "akiec")
}

func TestClassifyFileErrors(t *testing.T) {
	clf, err := classifier.New(fixedPredictor{}, classifier.WithCacheTTL(0))
	require.NoError(t, err)
	defer clf.Close()

	dir := t.TempDir()
	var out bytes.Buffer

	err = classifyFile(t.Context(), &out, clf, imaging.Normalizer{}, filepath.Join(dir, "missing.png"))
	require.Error(t, err)

	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0o600))
	err = classifyFile(t.Context(), &out, clf, imaging.Normalizer{}, notImage)
	require.ErrorIs(t, err, imaging.ErrDecode)
	assert.Empty(t, out.String())
}

func TestCloseWithLogReportsError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	closeWithLog(log, "classifier", func() error { return errors.New("interpreter busy") })
	assert.Contains(t, buf.String(), "failed to close classifier")
	assert.Contains(t, buf.String(), "interpreter busy")

	buf.Reset()
	closed := false
	closeWithLog(log, "classifier", func() error { closed = true; return nil })
	assert.True(t, closed)
	assert.Empty(t, buf.String())
}
