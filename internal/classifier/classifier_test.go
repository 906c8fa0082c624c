package classifier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/imaging"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

// stubPredictor returns fixed scores and counts invocations.
type stubPredictor struct {
	scores []float32
	err    error
	calls  atomic.Int32
	closed atomic.Bool
}

func (s *stubPredictor) Predict(input []float32) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return append([]float32(nil), s.scores...), nil
}

func (s *stubPredictor) Close() error {
	s.closed.Store(true)
	return nil
}

func testTensor(fill float32) *imaging.Tensor {
	data := make([]float32, imaging.Width*imaging.Height*imaging.Channels)
	for i := range data {
		data[i] = fill
	}
	return &imaging.Tensor{Shape: imaging.InputShape, Data: data}
}

func oneHot(index int) []float32 {
	scores := make([]float32, NumClasses)
	scores[index] = 0.9
	return scores
}

func TestLabelForIsTotal(t *testing.T) {
	want := []string{"akiec", "bcc", "bkl", "df", "nv", "vasc", "mel"}
	for i, code := range want {
		assert.Equal(t, code, LabelFor(i).Code)
		assert.NotEmpty(t, LabelFor(i).Description)
	}
	assert.Equal(t, "melanocytic nevi", LabelFor(4).Description)

	for _, i := range []int{-1, 7, 100} {
		assert.Equal(t, Unknown, LabelFor(i))
	}
	assert.Len(t, Labels(), NumClasses)
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   int
	}{
		{"single max", []float32{0.1, 0.7, 0.2}, 1},
		{"tie picks lowest", []float32{0.4, 0.1, 0.4}, 0},
		{"last", []float32{0, 0, 0, 1}, 3},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Argmax(tt.scores))
		})
	}
}

func TestClassifyReturnsLabel(t *testing.T) {
	stub := &stubPredictor{scores: oneHot(4)}
	c, err := New(stub, WithCacheTTL(0))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Classify(context.Background(), testTensor(0.5))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Index)
	assert.Equal(t, "nv", res.Code)
	assert.Equal(t, "melanocytic nevi", res.Description)
	assert.Len(t, res.Probabilities, NumClasses)
	assert.False(t, res.Cached)
}

func TestClassifyIsDeterministic(t *testing.T) {
	stub := &stubPredictor{scores: []float32{0.1, 0.05, 0.05, 0.1, 0.1, 0.1, 0.5}}
	c, err := New(stub, WithCacheTTL(0))
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Classify(context.Background(), testTensor(0.25))
	require.NoError(t, err)
	for range 5 {
		again, err := c.Classify(context.Background(), testTensor(0.25))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, int32(6), stub.calls.Load())
}

func TestClassifyUsesCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewClassifierMetrics(registry)
	require.NoError(t, err)

	stub := &stubPredictor{scores: oneHot(6)}
	c, err := New(stub, WithCacheTTL(time.Minute), WithMetrics(m))
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Classify(context.Background(), testTensor(0.1))
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), testTensor(0.1))
	require.NoError(t, err)

	assert.Equal(t, int32(1), stub.calls.Load())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Code, second.Code)

	second.Probabilities[0] = 42
	third, err := c.Classify(context.Background(), testTensor(0.1))
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), third.Probabilities[0], "cached scores are copied out")

	_, err = c.Classify(context.Background(), testTensor(0.2))
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())

	count, err := testutil.GatherAndCount(registry, "lesionscan_predictions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClassifyErrors(t *testing.T) {
	t.Run("predictor failure", func(t *testing.T) {
		c, err := New(&stubPredictor{err: errors.NewStd("invoke failed")}, WithCacheTTL(0))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Classify(context.Background(), testTensor(0.5))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryProcessing))
	})

	t.Run("empty output", func(t *testing.T) {
		c, err := New(&stubPredictor{scores: []float32{}}, WithCacheTTL(0))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Classify(context.Background(), testTensor(0.5))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryProcessing))
	})

	t.Run("invalid tensor", func(t *testing.T) {
		stub := &stubPredictor{scores: oneHot(0)}
		c, err := New(stub, WithCacheTTL(0))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Classify(context.Background(), &imaging.Tensor{Shape: [4]int{1, 2, 2, 3}, Data: make([]float32, 12)})
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		assert.Zero(t, stub.calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		c, err := New(&stubPredictor{scores: oneHot(0)}, WithCacheTTL(0))
		require.NoError(t, err)
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = c.Classify(ctx, testTensor(0.5))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("nil predictor", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})
}

func TestCloseReleasesPredictor(t *testing.T) {
	stub := &stubPredictor{scores: oneHot(1)}
	c, err := New(stub)
	require.NoError(t, err)
	assert.True(t, c.Ready())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, stub.closed.Load())
	assert.False(t, c.Ready())

	_, err = c.Classify(context.Background(), testTensor(0.5))
	assert.Error(t, err)
}

func TestClassifyConcurrent(t *testing.T) {
	stub := &stubPredictor{scores: oneHot(2)}
	c, err := New(stub)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			res, err := c.Classify(context.Background(), testTensor(float32(i%4)/4))
			assert.NoError(t, err)
			assert.Equal(t, "bkl", res.Code)
		})
	}
	wg.Wait()
}
