package logger

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/instill-ai/breed-recognition/config"
)

var once sync.Once
var core zapcore.Core

func newCore(debug bool) zapcore.Core {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	stdoutSyncer := zapcore.Lock(os.Stdout)
	stderrSyncer := zapcore.Lock(os.Stderr)

	encoderConfig := zap.NewProductionEncoderConfig()
	stdoutLevel := zapcore.LevelEnabler(infoLevel)
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		stdoutLevel = debugInfoLevel
	}

	return zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stdoutSyncer, stdoutLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stderrSyncer, warnErrorFatalLevel),
	)
}

// GetZapLogger returns an instance of zap logger. The first call fixes the
// level split according to config.Config.Server.Debug.
func GetZapLogger(ctx context.Context) (*zap.Logger, error) {
	once.Do(func() {
		core = newCore(config.Config.Server.Debug)
	})

	// inject log entries into the span carried by ctx, if any
	logger := zap.New(core).WithOptions(zap.Hooks(spanHook(ctx)))

	return logger, nil
}

func spanHook(ctx context.Context) func(zapcore.Entry) error {
	return func(entry zapcore.Entry) error {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return nil
		}

		span.AddEvent("log", trace.WithAttributes(
			attribute.String("log.severity", entry.Level.String()),
			attribute.String("log.message", entry.Message),
		))
		if entry.Level >= zap.ErrorLevel {
			span.SetStatus(codes.Error, entry.Message)
		}

		return nil
	}
}
