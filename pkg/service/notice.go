package service

import (
	"errors"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/feedback"
)

// User-facing notices
const (
	NoticeInvalidImage     = "could not process image"
	NoticeModelUnavailable = "classification is unavailable"
	NoticePredictFailed    = "prediction failed"
	NoticeSubmitFailed     = "failed to submit feedback, please try again later"
	NoticeThanks           = "thank you for your feedback!"
)

// Notice converts an error of the pipeline into the message shown to the
// user. Both submission failure kinds share one message.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, datamodel.ErrSubmission):
		return NoticeSubmitFailed
	case errors.Is(err, datamodel.ErrInvalidImage):
		return NoticeInvalidImage
	case errors.Is(err, datamodel.ErrModelUnavailable):
		return NoticeModelUnavailable
	}
	return NoticePredictFailed
}

// OutcomeNotice returns the message shown once a feedback session ends.
// A delivered notification whose upload failed is still a failure to the
// user.
func OutcomeNotice(outcome feedback.FeedbackOutcome) string {
	if outcome.Err != nil {
		return NoticeSubmitFailed
	}
	return NoticeThanks
}
