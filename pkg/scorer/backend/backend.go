// Package backend opens the configured inference backend behind the
// scorer.Scorer interface.
package backend

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/instill-ai/breed-recognition/config"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/logger"
	"github.com/instill-ai/breed-recognition/pkg/scorer"
	"github.com/instill-ai/breed-recognition/pkg/scorer/onnx"
	"github.com/instill-ai/breed-recognition/pkg/scorer/tflite"
)

// ResolveShape returns the model contract from the manifest when one is
// configured, from the explicit model settings otherwise.
func ResolveShape(cfg config.ModelConfig) (scorer.Shape, error) {
	shape := scorer.Shape{
		Width:      cfg.InputWidth,
		Height:     cfg.InputHeight,
		NumClasses: cfg.NumClasses,
	}
	if cfg.Manifest == "" {
		return shape, nil
	}

	m, err := scorer.LoadManifest(cfg.Manifest)
	if err != nil {
		return scorer.Shape{}, err
	}
	return scorer.ManifestShape(m), nil
}

// Open loads the model once. Every failure is reported as
// datamodel.ErrModelUnavailable so the caller can disable classification
// without terminating.
func Open(ctx context.Context, cfg config.ModelConfig) (*scorer.Checked, error) {
	logger, _ := logger.GetZapLogger(ctx)

	shape, err := ResolveShape(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", datamodel.ErrModelUnavailable, err)
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", datamodel.ErrModelUnavailable, err)
	}

	logger.Info("loading model",
		zap.String("backend", cfg.Backend),
		zap.String("path", cfg.Path),
		zap.Int("width", shape.Width),
		zap.Int("height", shape.Height),
		zap.Int("classes", shape.NumClasses))

	var s scorer.Scorer
	switch cfg.Backend {
	case config.BackendONNX:
		s, err = onnx.New(cfg.Path, onnx.Options{
			SharedLibrary: cfg.SharedLibrary,
			InputName:     cfg.InputName,
			OutputName:    cfg.OutputName,
			Shape:         shape,
		})
	case config.BackendTFLite:
		s, err = tflite.New(cfg.Path, tflite.Options{
			NumThreads: cfg.NumThreads,
			Shape:      shape,
		})
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		logger.Error("model unavailable", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", datamodel.ErrModelUnavailable, err)
	}

	return &scorer.Checked{Scorer: s, Shape: shape}, nil
}
