package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/instill-ai/breed-recognition/config"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/logger"
)

// Endpoints relative to the feedback base URL
const (
	FeedbackEndpoint = "feedback"
	UploadEndpoint   = "upload"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultJPEGQuality = 100
	retryDelay         = 100 * time.Millisecond
)

// Options configures a FeedbackClient.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RetryCount     int
	AuthToken      string
	JPEGQuality    int
	MaxUploadBytes int
}

// OptionsFromConfig maps the feedback configuration section.
func OptionsFromConfig(cfg config.FeedbackConfig) Options {
	return Options{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		RetryCount:     cfg.RetryCount,
		AuthToken:      cfg.AuthToken,
		JPEGQuality:    cfg.JPEGQuality,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
}

// FeedbackClient delivers feedback records to the dataset backend.
type FeedbackClient struct {
	*resty.Client
	jpegQuality    int
	maxUploadBytes int
}

// NewFeedbackClient returns an initialized feedback HTTP client.
func NewFeedbackClient(ctx context.Context, opts Options) *FeedbackClient {
	logger, _ := logger.GetZapLogger(ctx)

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = defaultJPEGQuality
	}

	r := resty.New().
		SetLogger(logger.Sugar()).
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(retryDelay)
	if opts.AuthToken != "" {
		r.SetAuthToken(opts.AuthToken)
	}

	return &FeedbackClient{
		Client:         r,
		jpegQuality:    opts.JPEGQuality,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// SubmitFeedback always posts the feedback notification and, for a
// correction, uploads the image afterwards. The upload is attempted only
// once the notification has completed successfully. Errors are
// *datamodel.SubmissionError values.
func (c *FeedbackClient) SubmitFeedback(ctx context.Context, record datamodel.FeedbackRecord) error {
	logger, _ := logger.GetZapLogger(ctx)

	if !record.IsCorrect && record.Image == nil {
		return fmt.Errorf("%w: correction has no image", datamodel.ErrInvalidImage)
	}

	if err := c.PostFeedback(ctx, record.Payload()); err != nil {
		logger.Warn("feedback notification failed", zap.Error(err))
		return err
	}
	logger.Info("feedback notification delivered",
		zap.Int("predicted_breed_id", record.PredictedIndex),
		zap.Int("actual_breed_id", record.ActualIndex),
		zap.Bool("is_correct", record.IsCorrect))

	if record.IsCorrect {
		return nil
	}

	if err := c.UploadImage(ctx, record.Image, record.ActualIndex); err != nil {
		logger.Warn("image upload failed after feedback was delivered", zap.Error(err))
		return err
	}
	logger.Info("corrected image uploaded", zap.Int("breed_id", record.ActualIndex))

	return nil
}

// PostFeedback calls the POST /feedback endpoint.
func (c *FeedbackClient) PostFeedback(ctx context.Context, payload datamodel.FeedbackPayload) error {
	return c.post(ctx, FeedbackEndpoint, payload)
}

// UploadImage calls the POST /upload endpoint with img encoded as base64
// JPEG.
func (c *FeedbackClient) UploadImage(ctx context.Context, img image.Image, breedID int) error {
	encoded, err := EncodeImage(img, c.jpegQuality)
	if err != nil {
		return &datamodel.SubmissionError{
			Kind:     datamodel.KindEncode,
			Endpoint: UploadEndpoint,
			Err:      fmt.Errorf("%w: %v", datamodel.ErrInvalidImage, err),
		}
	}
	if c.maxUploadBytes > 0 && len(encoded) > c.maxUploadBytes {
		return &datamodel.SubmissionError{
			Kind:     datamodel.KindPayloadTooLarge,
			Endpoint: UploadEndpoint,
			Err:      fmt.Errorf("encoded image is %d bytes, limit is %d", len(encoded), c.maxUploadBytes),
		}
	}

	return c.post(ctx, UploadEndpoint, datamodel.UploadPayload{Image: encoded, BreedID: breedID})
}

func (c *FeedbackClient) post(ctx context.Context, endpoint string, body any) error {
	resp, err := c.R().SetContext(ctx).SetBody(body).Post(endpoint)
	if err != nil {
		return datamodel.NewTransportError(endpoint, err)
	}
	if !resp.IsSuccess() {
		return datamodel.NewHTTPStatusError(endpoint, resp.StatusCode())
	}
	return nil
}

// EncodeImage compresses img as JPEG at the given quality and returns it
// base64 encoded.
func EncodeImage(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
