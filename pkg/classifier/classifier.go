package classifier

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/logger"
	"github.com/instill-ai/breed-recognition/pkg/preprocess"
	"github.com/instill-ai/breed-recognition/pkg/scorer"
	"github.com/instill-ai/breed-recognition/pkg/selector"
)

var tracer = otel.Tracer("github.com/instill-ai/breed-recognition/pkg/classifier")

// Classifier runs Normalizer → Scorer → Selector for one image. The scorer
// is process-wide shared state, so calls are serialized.
type Classifier struct {
	normalizer  *preprocess.Normalizer
	scorer      scorer.Scorer
	labels      *datamodel.LabelSet
	width       int
	height      int
	sem         *semaphore.Weighted
	unavailable error
}

// New returns a classifier feeding width × height tensors to s.
func New(s scorer.Scorer, labels *datamodel.LabelSet, normalizer *preprocess.Normalizer, width, height int) *Classifier {
	return &Classifier{
		normalizer: normalizer,
		scorer:     s,
		labels:     labels,
		width:      width,
		height:     height,
		sem:        semaphore.NewWeighted(1),
	}
}

// Unavailable returns a classifier whose every call fails with
// datamodel.ErrModelUnavailable, for a process where the model did not load.
func Unavailable(cause error) *Classifier {
	return &Classifier{unavailable: cause}
}

// Available reports whether the model is loaded.
func (c *Classifier) Available() bool {
	return c.unavailable == nil && c.scorer != nil
}

// Labels returns the label set predictions are resolved against.
func (c *Classifier) Labels() *datamodel.LabelSet {
	return c.labels
}

// Classify predicts the breed shown in img. It blocks until the shared
// scorer is free; ctx only cancels that wait.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (res *datamodel.PredictionResult, err error) {
	if !c.Available() {
		if c.unavailable != nil {
			return nil, fmt.Errorf("%w: %v", datamodel.ErrModelUnavailable, c.unavailable)
		}
		return nil, datamodel.ErrModelUnavailable
	}

	ctx, span := tracer.Start(ctx, "Classify")
	defer span.End()

	logger, _ := logger.GetZapLogger(ctx)

	tensor, err := c.normalizer.Normalize(img, c.width, c.height)
	if err != nil {
		logger.Warn("image rejected", zap.Error(err))
		return nil, err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	start := time.Now()
	dist, err := c.score(ctx, tensor)
	if err != nil {
		logger.Error("scoring failed", zap.Error(err))
		return nil, err
	}

	res, err = selector.Select(dist, c.labels)
	if err != nil {
		logger.Error("selection failed", zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("breed.index", res.TopIndex),
		attribute.String("breed.label", res.TopLabel),
		attribute.Float64("breed.confidence", res.ConfidencePercent),
	)
	logger.Info("breed predicted",
		zap.Int("index", res.TopIndex),
		zap.String("label", res.TopLabel),
		zap.Float64("confidence", res.ConfidencePercent),
		zap.Duration("duration", time.Since(start)))

	return res, nil
}

// score runs the backend and turns a panic inside it into ErrScoring.
func (c *Classifier) score(ctx context.Context, tensor datamodel.Tensor) (dist datamodel.Distribution, err error) {
	defer func() {
		if r := recover(); r != nil {
			dist = nil
			err = fmt.Errorf("%w: backend panic: %v", datamodel.ErrScoring, r)
		}
	}()
	return c.scorer.Score(ctx, tensor)
}
