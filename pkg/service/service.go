package service

import (
	"context"
	"image"
	"io"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/instill-ai/breed-recognition/pkg/classifier"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/feedback"
	"github.com/instill-ai/breed-recognition/pkg/logger"
	"github.com/instill-ai/breed-recognition/pkg/preprocess"
	"github.com/instill-ai/breed-recognition/pkg/selector"
)

// Service is the interface for the pipeline boundary
type Service interface {
	Available() bool
	GetLabels() *datamodel.LabelSet

	// Predict decodes an encoded image and classifies it.
	Predict(ctx context.Context, r io.Reader) (*Prediction, error)
	// PredictImage classifies an already decoded image.
	PredictImage(ctx context.Context, img image.Image) (*Prediction, error)
}

// Prediction is one classification event together with the feedback session
// the user's verdict goes through.
type Prediction struct {
	EventUID uuid.UUID
	Result   *datamodel.PredictionResult
	// Ranked holds the top candidates for a correction picker.
	Ranked   []datamodel.RankedLabel
	MIMEType string
	Session  *feedback.Session
}

type service struct {
	classifier *classifier.Classifier
	decoder    preprocess.Decoder
	submitter  feedback.Submitter
	topK       int
}

// NewService returns a new service instance
func NewService(c *classifier.Classifier, d preprocess.Decoder, s feedback.Submitter, topK int) Service {
	return &service{
		classifier: c,
		decoder:    d,
		submitter:  s,
		topK:       topK,
	}
}

func (s *service) Available() bool {
	return s.classifier.Available()
}

func (s *service) GetLabels() *datamodel.LabelSet {
	return s.classifier.Labels()
}

func (s *service) Predict(ctx context.Context, r io.Reader) (*Prediction, error) {
	logger, _ := logger.GetZapLogger(ctx)

	// skip decoding when the model never loaded
	if !s.Available() {
		return s.PredictImage(ctx, nil)
	}

	img, mimeType, err := s.decoder.Decode(r)
	if err != nil {
		logger.Warn("could not decode image", zap.String("mime_type", mimeType), zap.Error(err))
		return nil, err
	}

	p, err := s.PredictImage(ctx, img)
	if err != nil {
		return nil, err
	}
	p.MIMEType = mimeType
	return p, nil
}

func (s *service) PredictImage(ctx context.Context, img image.Image) (*Prediction, error) {
	logger, _ := logger.GetZapLogger(ctx)

	eventUID, _ := uuid.NewV4()
	logger = logger.With(zap.String("event_uid", eventUID.String()))
	logger.Debug("predict started")

	res, err := s.classifier.Classify(ctx, img)
	if err != nil {
		logger.Warn("predict failed", zap.Error(err))
		return nil, err
	}

	logger.Info("predict finished",
		zap.String("label", res.TopLabel),
		zap.Float64("confidence", res.ConfidencePercent))

	return &Prediction{
		EventUID: eventUID,
		Result:   res,
		Ranked:   selector.TopK(res.Distribution, s.GetLabels(), s.topK),
		Session:  feedback.NewSession(s.submitter, res, img, s.GetLabels()),
	}, nil
}
