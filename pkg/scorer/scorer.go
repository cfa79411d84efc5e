package scorer

import (
	"context"
	"fmt"
	"io"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
)

// Scorer is the opaque classification model: it maps a normalized tensor to
// one probability per breed index. Implementations are loaded once at start
// and reused for every call.
type Scorer interface {
	Score(ctx context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error)
}

// Func adapts a function to the Scorer interface.
type Func func(ctx context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error)

// Score calls f(ctx, tensor).
func (f Func) Score(ctx context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error) {
	return f(ctx, tensor)
}

// Shape is the fixed I/O contract of a model.
type Shape struct {
	Width      int
	Height     int
	NumClasses int
}

// InputLen returns the expected tensor length.
func (s Shape) InputLen() int {
	return datamodel.TensorLen(s.Width, s.Height)
}

// CheckInput returns an ErrScoring error when tensor does not fit s.
func (s Shape) CheckInput(tensor datamodel.Tensor) error {
	if len(tensor) != s.InputLen() {
		return fmt.Errorf("%w: tensor has %d values, model expects %d", datamodel.ErrScoring, len(tensor), s.InputLen())
	}
	return nil
}

// CheckOutput returns an ErrScoring error when dist does not fit s.
func (s Shape) CheckOutput(dist datamodel.Distribution) error {
	if len(dist) != s.NumClasses {
		return fmt.Errorf("%w: model returned %d scores, expected %d", datamodel.ErrScoring, len(dist), s.NumClasses)
	}
	return nil
}

// CheckLabels returns an error when a label set of n entries maps indices
// past the model output. Fewer entries than classes are allowed, the
// missing indices display as unknown.
func (s Shape) CheckLabels(n int) error {
	if n > s.NumClasses {
		return fmt.Errorf("label set has %d entries, model outputs %d classes", n, s.NumClasses)
	}
	return nil
}

// Checked wraps a Scorer with input and output shape checks.
type Checked struct {
	Scorer
	Shape Shape
}

// Score validates the tensor, scores it and validates the distribution.
func (c *Checked) Score(ctx context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error) {
	if err := c.Shape.CheckInput(tensor); err != nil {
		return nil, err
	}
	dist, err := c.Scorer.Score(ctx, tensor)
	if err != nil {
		return nil, err
	}
	if err := c.Shape.CheckOutput(dist); err != nil {
		return nil, err
	}
	return dist, nil
}

// Close closes the wrapped scorer when it holds native resources.
func (c *Checked) Close() error {
	if closer, ok := c.Scorer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
