// Package onnx runs breed models exported to ONNX through onnxruntime.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/scorer"
)

// Options configures the ONNX session.
type Options struct {
	SharedLibrary string
	InputName     string
	OutputName    string
	Shape         scorer.Shape
}

// Scorer holds one ONNX Runtime session with pre-bound input and output
// tensors. Calls are serialized because the bound tensors are shared.
type Scorer struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	shape        scorer.Shape
}

// New initialises the runtime environment and loads the model at modelPath.
// Input is bound as [1, H, W, 3] and output as [1, N].
func New(modelPath string, opts Options) (*Scorer, error) {
	if opts.SharedLibrary != "" {
		ort.SetSharedLibraryPath(opts.SharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(1, int64(opts.Shape.Height), int64(opts.Shape.Width), datamodel.Channels)
	outputShape := ort.NewShape(1, int64(opts.Shape.NumClasses))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Scorer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		shape:        opts.Shape,
	}, nil
}

// Score runs one inference.
func (s *Scorer) Score(_ context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error) {
	if err := s.shape.CheckInput(tensor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), tensor)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: inference failed: %v", datamodel.ErrScoring, err)
	}

	out := s.outputTensor.GetData()
	dist := make(datamodel.Distribution, len(out))
	copy(dist, out)

	return dist, nil
}

// Close releases the session, the bound tensors and the environment.
func (s *Scorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	return ort.DestroyEnvironment()
}
