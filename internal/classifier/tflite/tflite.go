// Package tflite runs the lesion model with TensorFlow Lite.
package tflite

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"
	tf "github.com/tphakala/go-tflite"

	"github.com/lesionscan/lesionscan/internal/classifier"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/imaging"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// Predictor is a classifier.Predictor backed by a TensorFlow Lite
// interpreter. Invoke is serialized because interpreters are not safe for
// concurrent use.
type Predictor struct {
	mu          sync.Mutex
	model       *tf.Model
	interpreter *tf.Interpreter
	modelPath   string
	threads     int
}

var _ classifier.Predictor = (*Predictor)(nil)

// Load reads the model at modelPath and prepares an interpreter. A threads
// value of 0 derives the count from the CPU topology.
func Load(modelPath string, threads int) (*Predictor, error) {
	start := time.Now()

	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(modelPath).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tf.NewModel(data)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath).
			Context("model_size_kb", len(data)/1024).
			Build()
	}

	threads = determineThreadCount(threads)

	options := tf.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, user_data any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tf.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, initError(modelPath, "cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tf.OK {
		interpreter.Delete()
		model.Delete()
		return nil, initError(modelPath, "tensor allocation failed")
	}

	p := &Predictor{
		model:       model,
		interpreter: interpreter,
		modelPath:   modelPath,
		threads:     threads,
	}
	if err := p.checkShapes(); err != nil {
		p.release()
		return nil, err
	}

	GetLogger().Info("lesion model initialized",
		logger.String("model", modelPath),
		logger.Int("threads", threads),
		logger.Int("total_cpus", runtime.NumCPU()),
		logger.Duration("load_time", time.Since(start)))

	return p, nil
}

// checkShapes verifies the model takes a 1x28x28x3 float32 input and emits
// one score per lesion class.
func (p *Predictor) checkShapes() error {
	input := p.interpreter.GetInputTensor(0)
	if input == nil {
		return initError(p.modelPath, "model has no input tensor")
	}
	if input.Type() != tf.Float32 {
		return initError(p.modelPath, fmt.Sprintf("input tensor type %v, want float32", input.Type()))
	}
	if input.NumDims() != len(imaging.InputShape) {
		return initError(p.modelPath, fmt.Sprintf("input tensor has %d dims, want %d", input.NumDims(), len(imaging.InputShape)))
	}
	for i, want := range imaging.InputShape {
		if got := input.Dim(i); got != want {
			return initError(p.modelPath, fmt.Sprintf("input dim %d is %d, want %d", i, got, want))
		}
	}

	output := p.interpreter.GetOutputTensor(0)
	if output == nil {
		return initError(p.modelPath, "model has no output tensor")
	}
	if classes := output.Dim(output.NumDims() - 1); classes != classifier.NumClasses {
		return initError(p.modelPath, fmt.Sprintf("model has %d output classes, want %d", classes, classifier.NumClasses))
	}
	return nil
}

// Predict copies input into the interpreter, invokes it and returns a copy of
// the output scores.
func (p *Predictor) Predict(input []float32) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interpreter == nil {
		return nil, fmt.Errorf("predictor is closed")
	}

	inputTensor := p.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	buf := inputTensor.Float32s()
	if len(buf) != len(input) {
		return nil, fmt.Errorf("input has %d values, tensor expects %d", len(input), len(buf))
	}
	copy(buf, input)

	if status := p.interpreter.Invoke(); status != tf.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := p.interpreter.GetOutputTensor(0)
	size := outputTensor.Dim(outputTensor.NumDims() - 1)
	scores := make([]float32, size)
	copy(scores, outputTensor.Float32s())
	return scores, nil
}

// Close frees the interpreter and model.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	return nil
}

// Threads returns the interpreter thread count.
func (p *Predictor) Threads() int {
	return p.threads
}

func (p *Predictor) release() {
	if p.interpreter != nil {
		p.interpreter.Delete()
		p.interpreter = nil
	}
	if p.model != nil {
		p.model.Delete()
		p.model = nil
	}
}

// determineThreadCount caps configured threads at the CPU count and, when
// unset, uses the physical core count.
func determineThreadCount(configured int) int {
	systemCPUCount := runtime.NumCPU()

	if configured <= 0 {
		if physical := cpuid.CPU.PhysicalCores; physical > 0 {
			return min(physical, systemCPUCount)
		}
		return systemCPUCount
	}
	return min(configured, systemCPUCount)
}

func initError(modelPath, msg string) error {
	return errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryModelInit).
		ModelContext(modelPath).
		Build()
}

// GetLogger returns the tflite module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("classifier.tflite")
}
