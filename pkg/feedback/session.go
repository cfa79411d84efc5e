package feedback

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	httpclient "github.com/instill-ai/breed-recognition/pkg/client/http"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/logger"
)

// State of a feedback session
type State int

const (
	// StateAwaitingVerdict is the initial state, holding the prediction and
	// the image until the user confirms, corrects or cancels
	StateAwaitingVerdict State = iota
	// StateSubmitting means a record has been handed to the submitter
	StateSubmitting
	// StateDone is terminal, reached after the submission succeeded or failed
	StateDone
	// StateCancelled is terminal, nothing is submitted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingVerdict:
		return "awaiting_verdict"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ErrInvalidTransition is returned when a verdict is given to a session that
// already left StateAwaitingVerdict.
var ErrInvalidTransition = errors.New("invalid feedback transition")

// Submitter delivers one feedback record.
type Submitter interface {
	SubmitFeedback(ctx context.Context, record datamodel.FeedbackRecord) error
}

// FeedbackOutcome is the terminal result of a submitted session.
type FeedbackOutcome struct {
	Record datamodel.FeedbackRecord
	Err    error
	// FeedbackDelivered is true when the feedback notification reached the
	// backend, even if the image upload that followed failed.
	FeedbackDelivered bool
}

// Session is the confirm/correct workflow of one classification event.
type Session struct {
	submitter  Submitter
	prediction *datamodel.PredictionResult
	image      image.Image
	labels     *datamodel.LabelSet

	mu      sync.Mutex
	state   State
	outcome FeedbackOutcome
	done    chan struct{}
}

// NewSession returns a session awaiting the user's verdict on prediction,
// which was computed from img.
func NewSession(submitter Submitter, prediction *datamodel.PredictionResult, img image.Image, labels *datamodel.LabelSet) *Session {
	return &Session{
		submitter:  submitter,
		prediction: prediction,
		image:      img,
		labels:     labels,
		state:      StateAwaitingVerdict,
		done:       make(chan struct{}),
	}
}

// Prediction returns the prediction under review.
func (s *Session) Prediction() *datamodel.PredictionResult {
	return s.prediction
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Confirm submits the prediction as correct.
func (s *Session) Confirm(ctx context.Context) (<-chan FeedbackOutcome, error) {
	return s.submit(ctx, func() datamodel.FeedbackRecord {
		return datamodel.FeedbackRecord{
			PredictedIndex: s.prediction.TopIndex,
			ActualIndex:    s.prediction.TopIndex,
			IsCorrect:      true,
		}
	})
}

// Correct submits a correction to the breed named label. The name must match
// a label exactly; an unknown name is still submitted with index -1.
func (s *Session) Correct(ctx context.Context, label string) (<-chan FeedbackOutcome, error) {
	index := -1
	if s.labels != nil {
		index = s.labels.IndexOf(label)
	}
	if index < 0 {
		logger, _ := logger.GetZapLogger(ctx)
		logger.Warn("corrected label is not in the label set", zap.String("label", label))
	}
	return s.CorrectIndex(ctx, index)
}

// CorrectIndex submits a correction to breed index k together with the image.
func (s *Session) CorrectIndex(ctx context.Context, k int) (<-chan FeedbackOutcome, error) {
	return s.submit(ctx, func() datamodel.FeedbackRecord {
		return datamodel.FeedbackRecord{
			PredictedIndex: s.prediction.TopIndex,
			ActualIndex:    k,
			IsCorrect:      false,
			Image:          s.image,
		}
	})
}

// Cancel ends the session without submitting anything.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingVerdict {
		return fmt.Errorf("%w: cannot cancel in state %s", ErrInvalidTransition, s.state)
	}
	s.state = StateCancelled
	s.image = nil
	close(s.done)
	return nil
}

// Wait blocks until the session is terminal. It returns the outcome and
// false for a cancelled session.
func (s *Session) Wait(ctx context.Context) (FeedbackOutcome, bool, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return FeedbackOutcome{}, false, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.state == StateDone, nil
}

// submit moves the session to StateSubmitting and runs the submission in the
// background. build is called with s.mu held. ctx bounds the submission.
func (s *Session) submit(ctx context.Context, build func() datamodel.FeedbackRecord) (<-chan FeedbackOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingVerdict {
		return nil, fmt.Errorf("%w: verdict already given, session is %s", ErrInvalidTransition, s.state)
	}
	s.state = StateSubmitting
	record := build()

	ch := make(chan FeedbackOutcome, 1)
	go func() {
		outcome := s.run(ctx, record)

		s.mu.Lock()
		s.outcome = outcome
		s.state = StateDone
		s.image = nil
		close(s.done)
		s.mu.Unlock()

		ch <- outcome
		close(ch)
	}()

	return ch, nil
}

func (s *Session) run(ctx context.Context, record datamodel.FeedbackRecord) FeedbackOutcome {
	logger, _ := logger.GetZapLogger(ctx)

	err := s.deliver(ctx, record)
	outcome := FeedbackOutcome{
		Record:            record,
		Err:               err,
		FeedbackDelivered: err == nil || uploadFailed(err),
	}

	fields := []zap.Field{
		zap.Int("predicted_breed_id", record.PredictedIndex),
		zap.Int("actual_breed_id", record.ActualIndex),
		zap.Bool("is_correct", record.IsCorrect),
	}
	switch {
	case err == nil:
		logger.Info("feedback submitted", fields...)
	case outcome.FeedbackDelivered:
		logger.Warn("feedback delivered but image upload failed", append(fields, zap.Error(err))...)
	default:
		logger.Warn("feedback submission failed", append(fields, zap.Error(err))...)
	}

	return outcome
}

// deliver calls the submitter and turns a panic inside it into an
// ErrSubmission error.
func (s *Session) deliver(ctx context.Context, record datamodel.FeedbackRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger, _ := logger.GetZapLogger(ctx)
			logger.Error("submitter panicked", zap.Any("panic", r))
			err = fmt.Errorf("%w: submitter panic: %v", datamodel.ErrSubmission, r)
		}
	}()
	return s.submitter.SubmitFeedback(ctx, record)
}

func uploadFailed(err error) bool {
	var se *datamodel.SubmissionError
	return errors.As(err, &se) && se.Endpoint == httpclient.UploadEndpoint
}
