package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/instill-ai/breed-recognition/config"
	"github.com/instill-ai/breed-recognition/pkg/classifier"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/preprocess"
	"github.com/instill-ai/breed-recognition/pkg/scorer/backend"
	"github.com/instill-ai/breed-recognition/pkg/service"

	httpclient "github.com/instill-ai/breed-recognition/pkg/client/http"
	custom_logger "github.com/instill-ai/breed-recognition/pkg/logger"
)

const topK = 3

func main() {
	configPath := config.ParseConfigFlag(flag.CommandLine)
	imagePath := flag.String("image", "", "image file to classify")
	confirm := flag.Bool("confirm", false, "confirm the prediction")
	correct := flag.String("correct", "", "correct the prediction to this breed name")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal(err.Error())
	}
	if *imagePath == "" {
		log.Fatal("-image is required")
	}
	if *confirm && *correct != "" {
		log.Fatal("-confirm and -correct are mutually exclusive")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, _ := custom_logger.GetZapLogger(ctx)

	code := run(ctx, logger, *imagePath, *confirm, *correct)

	// can't handle the error due to https://github.com/uber-go/zap/issues/880
	_ = logger.Sync()
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, logger *zap.Logger, imagePath string, confirm bool, correct string) int {
	labels, err := datamodel.LoadLabelSet(config.Config.Labels.Path)
	if err != nil {
		logger.Error("failed to load labels", zap.Error(err))
		return 1
	}

	c, closer := newClassifier(ctx, logger, labels)
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to release model", zap.Error(err))
		}
	}()

	submitter := httpclient.NewFeedbackClient(ctx, httpclient.OptionsFromConfig(config.Config.Feedback))
	decoder := preprocess.Decoder{
		AutoOrient: config.Config.Preprocess.AutoOrient,
		MaxBytes:   config.Config.Preprocess.MaxDecodeBytes,
	}
	s := service.NewService(c, decoder, submitter, topK)

	f, err := os.Open(imagePath)
	if err != nil {
		logger.Error("failed to open image", zap.Error(err))
		fmt.Println(service.NoticeInvalidImage)
		return 1
	}
	defer f.Close()

	p, err := s.Predict(ctx, f)
	if err != nil {
		fmt.Println(service.Notice(err))
		if errors.Is(err, datamodel.ErrModelUnavailable) {
			return 1
		}
		return 0
	}

	fmt.Println(p.Result)
	for _, r := range p.Ranked {
		fmt.Printf("  %d. %s (%.1f%%)\n", r.Index, r.Label, r.ConfidencePercent)
	}

	switch {
	case confirm:
		_, err = p.Session.Confirm(ctx)
	case correct != "":
		_, err = p.Session.Correct(ctx, correct)
	default:
		return 0
	}
	if err != nil {
		logger.Error("failed to submit verdict", zap.Error(err))
		return 1
	}

	outcome, _, err := p.Session.Wait(ctx)
	if err != nil {
		fmt.Println(service.NoticeSubmitFailed)
		return 0
	}
	fmt.Println(service.OutcomeNotice(outcome))
	return 0
}

// newClassifier opens the configured model. A model that fails to load
// disables classification without stopping the process.
func newClassifier(ctx context.Context, logger *zap.Logger, labels *datamodel.LabelSet) (*classifier.Classifier, io.Closer) {
	normalizer, err := preprocess.NewNormalizer(config.Config.Preprocess.Interpolation)
	if err != nil {
		return classifier.Unavailable(err), io.NopCloser(nil)
	}

	s, err := backend.Open(ctx, config.Config.Model)
	if err != nil {
		logger.Error("classification disabled", zap.Error(err))
		return classifier.Unavailable(err), io.NopCloser(nil)
	}

	if err := s.Shape.CheckLabels(labels.Len()); err != nil {
		logger.Error("classification disabled", zap.Error(err))
		return classifier.Unavailable(err), s
	}
	if labels.Len() < s.Shape.NumClasses {
		logger.Warn("label set does not cover every model output, missing indices display as unknown",
			zap.Int("labels", labels.Len()),
			zap.Int("classes", s.Shape.NumClasses))
	}

	return classifier.New(s, labels, normalizer, s.Shape.Width, s.Shape.Height), s
}
