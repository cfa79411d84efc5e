package feedback_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "github.com/instill-ai/breed-recognition/pkg/client/http"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/feedback"
	"github.com/instill-ai/breed-recognition/pkg/mock"
)

var breeds = []string{"Gir", "Sahiwal", "Red Sindhi", "Tharparkar", "Kankrej", "Ongole"}

func newSession(t *testing.T, s feedback.Submitter, topIndex int) (*feedback.Session, image.Image) {
	labels, err := datamodel.NewLabelSet(breeds)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	prediction := &datamodel.PredictionResult{TopIndex: topIndex, TopLabel: breeds[topIndex], ConfidencePercent: 91.2}
	return feedback.NewSession(s, prediction, img, labels), img
}

func receive(t *testing.T, ch <-chan feedback.FeedbackOutcome) feedback.FeedbackOutcome {
	select {
	case outcome, ok := <-ch:
		require.True(t, ok)
		_, open := <-ch
		assert.False(t, open, "outcome channel is closed after one value")
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome")
	}
	return feedback.FeedbackOutcome{}
}

func TestConfirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mock.NewMockSubmitter(ctrl)
	submitter.EXPECT().
		SubmitFeedback(gomock.Any(), datamodel.FeedbackRecord{PredictedIndex: 2, ActualIndex: 2, IsCorrect: true}).
		Return(nil).
		Times(1)

	s, _ := newSession(t, submitter, 2)
	assert.Equal(t, feedback.StateAwaitingVerdict, s.State())

	ch, err := s.Confirm(context.Background())
	require.NoError(t, err)

	outcome := receive(t, ch)
	assert.NoError(t, outcome.Err)
	assert.True(t, outcome.FeedbackDelivered)
	assert.Nil(t, outcome.Record.Image)
	assert.Equal(t, feedback.StateDone, s.State())
}

func TestCorrect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mock.NewMockSubmitter(ctrl)
	s, img := newSession(t, submitter, 0)

	submitter.EXPECT().
		SubmitFeedback(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, record datamodel.FeedbackRecord) error {
			assert.Equal(t, 0, record.PredictedIndex)
			assert.Equal(t, 5, record.ActualIndex)
			assert.False(t, record.IsCorrect)
			assert.Same(t, img, record.Image)
			return nil
		}).
		Times(1)

	ch, err := s.Correct(context.Background(), "Ongole")
	require.NoError(t, err)

	outcome := receive(t, ch)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, 5, outcome.Record.ActualIndex)
	assert.NotNil(t, outcome.Record.Image)
}

func TestCorrect_UnknownLabel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mock.NewMockSubmitter(ctrl)
	submitter.EXPECT().
		SubmitFeedback(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, record datamodel.FeedbackRecord) error {
			assert.Equal(t, -1, record.ActualIndex)
			return nil
		}).
		Times(1)

	s, _ := newSession(t, submitter, 1)

	// lookup is an exact match, so a differently cased name is unknown
	ch, err := s.Correct(context.Background(), "gir")
	require.NoError(t, err)
	assert.Equal(t, -1, receive(t, ch).Record.ActualIndex)
}

func TestCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	submitter := mock.NewMockSubmitter(ctrl)
	submitter.EXPECT().SubmitFeedback(gomock.Any(), gomock.Any()).Times(0)

	s, _ := newSession(t, submitter, 1)
	require.NoError(t, s.Cancel())
	assert.Equal(t, feedback.StateCancelled, s.State())

	_, submitted, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, submitted)

	_, err = s.Confirm(context.Background())
	assert.ErrorIs(t, err, feedback.ErrInvalidTransition)
	assert.ErrorIs(t, s.Cancel(), feedback.ErrInvalidTransition)
}

func TestInvalidTransitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	release := make(chan struct{})
	submitter := mock.NewMockSubmitter(ctrl)
	submitter.EXPECT().
		SubmitFeedback(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, datamodel.FeedbackRecord) error {
			<-release
			return nil
		}).
		Times(1)

	s, _ := newSession(t, submitter, 3)
	ch, err := s.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, feedback.StateSubmitting, s.State())

	_, err = s.Confirm(context.Background())
	assert.ErrorIs(t, err, feedback.ErrInvalidTransition)
	_, err = s.CorrectIndex(context.Background(), 1)
	assert.ErrorIs(t, err, feedback.ErrInvalidTransition)
	assert.ErrorIs(t, s.Cancel(), feedback.ErrInvalidTransition)

	close(release)
	receive(t, ch)

	_, err = s.Correct(context.Background(), "Gir")
	assert.ErrorIs(t, err, feedback.ErrInvalidTransition)
}

func TestSubmissionFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		delivered bool
	}{
		{
			name:      "feedback status",
			err:       datamodel.NewHTTPStatusError(httpclient.FeedbackEndpoint, 500),
			delivered: false,
		},
		{
			name:      "feedback transport",
			err:       datamodel.NewTransportError(httpclient.FeedbackEndpoint, context.DeadlineExceeded),
			delivered: false,
		},
		{
			name:      "upload status",
			err:       datamodel.NewHTTPStatusError(httpclient.UploadEndpoint, 500),
			delivered: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			submitter := mock.NewMockSubmitter(ctrl)
			submitter.EXPECT().SubmitFeedback(gomock.Any(), gomock.Any()).Return(tc.err).Times(1)

			s, _ := newSession(t, submitter, 0)
			_, err := s.CorrectIndex(context.Background(), 4)
			require.NoError(t, err)

			outcome, submitted, err := s.Wait(context.Background())
			require.NoError(t, err)
			assert.True(t, submitted)
			assert.True(t, errors.Is(outcome.Err, datamodel.ErrSubmission))
			assert.Equal(t, tc.delivered, outcome.FeedbackDelivered)
			assert.Equal(t, feedback.StateDone, s.State())
		})
	}
}

func TestConcurrentVerdicts(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctrl := gomock.NewController(t)

		submitter := mock.NewMockSubmitter(ctrl)
		submitter.EXPECT().SubmitFeedback(gomock.Any(), gomock.Any()).Return(nil).MaxTimes(1)

		s, _ := newSession(t, submitter, 0)

		verdicts := []func() error{
			func() error { _, err := s.Confirm(context.Background()); return err },
			func() error { _, err := s.CorrectIndex(context.Background(), 1); return err },
			func() error { _, err := s.Correct(context.Background(), "Kankrej"); return err },
			s.Cancel,
		}

		var wg sync.WaitGroup
		errs := make([]error, len(verdicts))
		for j, verdict := range verdicts {
			wg.Add(1)
			go func(j int, verdict func() error) {
				defer wg.Done()
				errs[j] = verdict()
			}(j, verdict)
		}
		wg.Wait()

		accepted := 0
		for _, err := range errs {
			if err == nil {
				accepted++
				continue
			}
			assert.ErrorIs(t, err, feedback.ErrInvalidTransition)
		}
		assert.Equal(t, 1, accepted, "exactly one verdict is accepted")

		_, _, err := s.Wait(context.Background())
		require.NoError(t, err)
		ctrl.Finish()
	}
}

func TestVerdictWhileSubmissionEnds(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctrl := gomock.NewController(t)

		submitter := mock.NewMockSubmitter(ctrl)
		submitter.EXPECT().SubmitFeedback(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		s, _ := newSession(t, submitter, 2)
		ch, err := s.Confirm(context.Background())
		require.NoError(t, err)

		late := make(chan error, 1)
		go func() {
			_, err := s.CorrectIndex(context.Background(), 1)
			late <- err
		}()

		outcome := receive(t, ch)
		assert.True(t, outcome.Record.IsCorrect)
		assert.ErrorIs(t, <-late, feedback.ErrInvalidTransition)
		ctrl.Finish()
	}
}

type submitterFunc func(ctx context.Context, record datamodel.FeedbackRecord) error

func (f submitterFunc) SubmitFeedback(ctx context.Context, record datamodel.FeedbackRecord) error {
	return f(ctx, record)
}

func TestSubmitterPanic(t *testing.T) {
	panicking := submitterFunc(func(context.Context, datamodel.FeedbackRecord) error {
		panic("connection pool exhausted")
	})

	s, _ := newSession(t, panicking, 0)
	ch, err := s.CorrectIndex(context.Background(), 3)
	require.NoError(t, err)

	outcome := receive(t, ch)
	assert.ErrorIs(t, outcome.Err, datamodel.ErrSubmission)
	assert.Contains(t, outcome.Err.Error(), "connection pool exhausted")
	assert.False(t, outcome.FeedbackDelivered)
	assert.Equal(t, feedback.StateDone, s.State())

	waited, submitted, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, submitted)
	assert.Equal(t, outcome.Err, waited.Err)
}

func TestWait_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, _ := newSession(t, mock.NewMockSubmitter(ctrl), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, feedback.StateAwaitingVerdict, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_verdict", feedback.StateAwaitingVerdict.String())
	assert.Equal(t, "submitting", feedback.StateSubmitting.String())
	assert.Equal(t, "done", feedback.StateDone.String())
	assert.Equal(t, "cancelled", feedback.StateCancelled.String())
}
