package datamodel

import (
	"fmt"
	"image"
)

// Channels is the number of colour channels the model consumes (R, G, B)
const Channels = 3

// UnknownLabel is displayed for an index the LabelSet does not map
const UnknownLabel = "Unknown"

// Tensor is the flat, row-major, RGB-interleaved model input with every
// value in [0, 1].
type Tensor []float32

// Distribution is the model output, one probability per breed index.
type Distribution []float32

// TensorLen returns the tensor length for a sizeX × sizeY model input.
func TensorLen(sizeX, sizeY int) int {
	return Channels * sizeX * sizeY
}

// PredictionResult is the top-1 prediction derived from a distribution.
type PredictionResult struct {
	Distribution      Distribution `json:"distribution"`
	TopIndex          int          `json:"top_index"`
	TopLabel          string       `json:"top_label"`
	ConfidencePercent float64      `json:"confidence_percent"`
}

func (p *PredictionResult) String() string {
	return fmt.Sprintf("Breed: %s\nConfidence: %.1f%%", p.TopLabel, p.ConfidencePercent)
}

// RankedLabel is one entry of a top-k ranking.
type RankedLabel struct {
	Index             int     `json:"index"`
	Label             string  `json:"label"`
	ConfidencePercent float64 `json:"confidence_percent"`
}

// FeedbackRecord is the user's verdict on one prediction. Image is set iff
// IsCorrect is false.
type FeedbackRecord struct {
	PredictedIndex int
	ActualIndex    int
	IsCorrect      bool
	Image          image.Image
}

// Payload returns the feedback notification body for the record.
func (r FeedbackRecord) Payload() FeedbackPayload {
	return FeedbackPayload{
		PredictedBreedID: r.PredictedIndex,
		ActualBreedID:    r.ActualIndex,
		IsCorrect:        r.IsCorrect,
	}
}

// FeedbackPayload is the body of POST {base_url}/feedback
type FeedbackPayload struct {
	PredictedBreedID int  `json:"predicted_breed_id"`
	ActualBreedID    int  `json:"actual_breed_id"`
	IsCorrect        bool `json:"is_correct"`
}

// UploadPayload is the body of POST {base_url}/upload
type UploadPayload struct {
	Image   string `json:"image"`
	BreedID int    `json:"breed_id"`
}

// ModelManifest describes the fixed input/output contract of a model file.
type ModelManifest struct {
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
	NumClasses  int     `json:"num_classes"`
}
