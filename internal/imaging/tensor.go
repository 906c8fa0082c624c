package imaging

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/lesionscan/lesionscan/internal/errors"
)

// Model input geometry. Tensors are NHWC with a batch of one.
const (
	Width    = 28
	Height   = 28
	Channels = 3
)

// InputShape is the only tensor shape the classifier accepts.
var InputShape = [4]int{1, Height, Width, Channels}

// Tensor is a dense float32 array in row-major NHWC order.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// Len returns the element count implied by the shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate reports whether the tensor has the model input shape and every
// value lies in [0, 1].
func (t *Tensor) Validate() error {
	if t == nil {
		return newValidationError("nil tensor")
	}
	if t.Shape != InputShape {
		return newValidationError(fmt.Sprintf("tensor shape %v, want %v", t.Shape, InputShape))
	}
	if len(t.Data) != t.Len() {
		return newValidationError(fmt.Sprintf("tensor has %d values, shape needs %d", len(t.Data), t.Len()))
	}
	for i, v := range t.Data {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return newValidationError(fmt.Sprintf("tensor value %v at %d outside [0,1]", v, i))
		}
	}
	return nil
}

// Digest returns the hex sha256 of the little-endian tensor data. Equal
// tensors have equal digests.
func (t *Tensor) Digest() string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func newValidationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("imaging").
		Category(errors.CategoryValidation).
		Build()
}
