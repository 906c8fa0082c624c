// Package classifier maps normalized image tensors to lesion labels using an
// injected model predictor.
package classifier

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/imaging"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
)

// DefaultCacheTTL is how long a classification result is memoized.
const DefaultCacheTTL = 10 * time.Minute

// Predictor runs the model on one flattened input tensor and returns the
// class scores. Implementations must be safe for concurrent use.
type Predictor interface {
	Predict(input []float32) ([]float32, error)
	Close() error
}

// Result is the outcome of one classification.
type Result struct {
	Index         int
	Code          string
	Description   string
	Probabilities []float32
	Cached        bool
}

// Classifier wraps a Predictor with argmax labelling, result caching and
// metrics.
type Classifier struct {
	predictor Predictor
	cache     *cache.Cache
	metrics   *metrics.ClassifierMetrics
	cacheTTL  time.Duration
	closed    atomic.Bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCacheTTL sets the result cache lifetime. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Classifier) {
		c.cacheTTL = ttl
	}
}

// WithMetrics records classifications into m.
func WithMetrics(m *metrics.ClassifierMetrics) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// New returns a Classifier backed by predictor.
func New(predictor Predictor, opts ...Option) (*Classifier, error) {
	if predictor == nil {
		return nil, errors.Newf("classifier requires a predictor").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	c := &Classifier{
		predictor: predictor,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cacheTTL > 0 {
		c.cache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	}
	if c.metrics != nil {
		c.metrics.SetModelLoaded(true)
	}
	return c, nil
}

// Classify runs the model on tensor and returns the highest-scoring class.
// Ties resolve to the lowest index. Identical tensors yield identical results.
func (c *Classifier) Classify(ctx context.Context, tensor *imaging.Tensor) (Result, error) {
	if c.closed.Load() {
		return Result{}, c.fail("closed", errors.Newf("classifier is closed").
			Component("classifier").
			Category(errors.CategoryProcessing).
			Build())
	}
	if err := tensor.Validate(); err != nil {
		return Result{}, c.fail("validation", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, c.fail("cancelled", err)
	}

	var key string
	if c.cache != nil {
		key = tensor.Digest()
		if cached, found := c.cache.Get(key); found {
			c.recordCache(true)
			res := cached.(Result)
			res.Probabilities = append([]float32(nil), res.Probabilities...)
			res.Cached = true
			return res, nil
		}
		c.recordCache(false)
	}

	if c.metrics != nil {
		defer c.metrics.InferenceStarted()()
	}

	start := time.Now()
	scores, err := c.predictor.Predict(tensor.Data)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, c.fail("predict", errors.New(err).
			Component("classifier").
			Category(errors.CategoryProcessing).
			Timing("predict", elapsed).
			Build())
	}
	if len(scores) == 0 {
		return Result{}, c.fail("empty_output", errors.Newf("model returned no scores").
			Component("classifier").
			Category(errors.CategoryProcessing).
			Build())
	}
	if c.metrics != nil {
		c.metrics.RecordInference(elapsed.Seconds())
	}

	index := Argmax(scores)
	label := LabelFor(index)
	res := Result{
		Index:         index,
		Code:          label.Code,
		Description:   label.Description,
		Probabilities: append([]float32(nil), scores...),
	}

	if c.cache != nil {
		c.cache.SetDefault(key, res)
	}
	if c.metrics != nil {
		c.metrics.RecordPrediction(res.Code)
	}

	GetLogger().Debug("classification complete",
		logger.Int("index", index),
		logger.String("code", res.Code),
		logger.Duration("inference", elapsed))

	return res, nil
}

// Close releases the predictor. Classify fails after Close.
func (c *Classifier) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.cache != nil {
		c.cache.Flush()
	}
	if c.metrics != nil {
		c.metrics.SetModelLoaded(false)
	}
	if err := c.predictor.Close(); err != nil {
		return fmt.Errorf("closing predictor: %w", err)
	}
	return nil
}

// Ready reports whether the classifier can serve requests.
func (c *Classifier) Ready() bool {
	return !c.closed.Load()
}

// Argmax returns the index of the largest value, preferring the lowest index
// on ties. It returns -1 for an empty slice.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

func (c *Classifier) fail(errorType string, err error) error {
	if c.metrics != nil {
		c.metrics.RecordPredictionError(errorType)
	}
	return err
}

func (c *Classifier) recordCache(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

// GetLogger returns the classifier module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("classifier")
}
