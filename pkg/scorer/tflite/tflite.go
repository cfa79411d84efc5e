// Package tflite runs the bundled TensorFlow Lite breed model.
package tflite

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/scorer"
)

// Options configures the interpreter.
type Options struct {
	NumThreads int
	Shape      scorer.Shape
}

// Scorer owns one TFLite interpreter. The interpreter is not safe for
// concurrent use, so calls are serialized.
type Scorer struct {
	mu      sync.Mutex
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
	shape   scorer.Shape
}

// New loads the model at modelPath and allocates its tensors. The model
// input must be float32 [1, H, W, 3] and its output float32 [1, N].
func New(modelPath string, opts Options) (*Scorer, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if opts.NumThreads > 0 {
		options.SetNumThread(opts.NumThreads)
	}

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to create interpreter for %s", modelPath)
	}

	s := &Scorer{model: model, options: options, interp: interp, shape: opts.Shape}

	if status := interp.AllocateTensors(); status != tflite.OK {
		_ = s.Close()
		return nil, fmt.Errorf("failed to allocate tensors: status %v", status)
	}
	if err := s.checkTensors(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Scorer) checkTensors() error {
	input := s.interp.GetInputTensor(0)
	if input == nil || input.Type() != tflite.Float32 {
		return fmt.Errorf("model input 0 is not a float32 tensor")
	}
	dims := make([]int, input.NumDims())
	size := 1
	for i := range dims {
		dims[i] = input.Dim(i)
		size *= dims[i]
	}
	if size != s.shape.InputLen() {
		return fmt.Errorf("model input %v does not match %dx%dx%d", dims, s.shape.Height, s.shape.Width, datamodel.Channels)
	}

	output := s.interp.GetOutputTensor(0)
	if output == nil || output.Type() != tflite.Float32 {
		return fmt.Errorf("model output 0 is not a float32 tensor")
	}
	if n := len(output.Float32s()); n != s.shape.NumClasses {
		return fmt.Errorf("model output has %d classes, expected %d", n, s.shape.NumClasses)
	}

	return nil
}

// Score runs one inference.
func (s *Scorer) Score(_ context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error) {
	if err := s.shape.CheckInput(tensor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.interp.GetInputTensor(0).Float32s(), tensor)
	if status := s.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("%w: invoke failed: status %v", datamodel.ErrScoring, status)
	}

	out := s.interp.GetOutputTensor(0).Float32s()
	dist := make(datamodel.Distribution, len(out))
	copy(dist, out)

	return dist, nil
}

// Close releases the interpreter and the model.
func (s *Scorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interp != nil {
		s.interp.Delete()
		s.interp = nil
	}
	if s.options != nil {
		s.options.Delete()
		s.options = nil
	}
	if s.model != nil {
		s.model.Delete()
		s.model = nil
	}
	return nil
}
