package config

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// ServerConfig defines process-level options
type ServerConfig struct {
	Debug bool `koanf:"debug"`
}

// ModelConfig related to the bundled classification model
type ModelConfig struct {
	Backend     string `koanf:"backend"`
	Path        string `koanf:"path"`
	Manifest    string `koanf:"manifest"`
	InputWidth  int    `koanf:"inputwidth"`
	InputHeight int    `koanf:"inputheight"`
	NumClasses  int    `koanf:"numclasses"`
	InputName   string `koanf:"inputname"`
	OutputName  string `koanf:"outputname"`
	NumThreads  int    `koanf:"numthreads"`
	// SharedLibrary is the onnxruntime shared library path, empty for the
	// platform default
	SharedLibrary string `koanf:"sharedlibrary"`
}

// LabelsConfig related to the breed label resource
type LabelsConfig struct {
	Path string `koanf:"path"`
}

// PreprocessConfig related to image decoding and normalization
type PreprocessConfig struct {
	Interpolation  string `koanf:"interpolation"`
	AutoOrient     bool   `koanf:"autoorient"`
	MaxDecodeBytes int64  `koanf:"maxdecodebytes"`
}

// FeedbackConfig related to the feedback backend
type FeedbackConfig struct {
	BaseURL        string        `koanf:"baseurl"`
	Timeout        time.Duration `koanf:"timeout"`
	RetryCount     int           `koanf:"retrycount"`
	AuthToken      string        `koanf:"authtoken"`
	JPEGQuality    int           `koanf:"jpegquality"`
	MaxUploadBytes int           `koanf:"maxuploadbytes"`
}

// AppConfig defines
type AppConfig struct {
	Server     ServerConfig     `koanf:"server"`
	Model      ModelConfig      `koanf:"model"`
	Labels     LabelsConfig     `koanf:"labels"`
	Preprocess PreprocessConfig `koanf:"preprocess"`
	Feedback   FeedbackConfig   `koanf:"feedback"`
}

// Config - Global variable to export
var Config AppConfig

// Backends supported by the scorer factory
const (
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

// Interpolations supported by the normalizer
const (
	InterpolationBilinear   = "bilinear"
	InterpolationCatmullRom = "catmullrom"
	InterpolationLanczos3   = "lanczos3"
)

func defaults() map[string]any {
	return map[string]any{
		"model.backend":             BackendTFLite,
		"model.path":                "assets/breed_predictor.tflite",
		"model.inputwidth":          224,
		"model.inputheight":         224,
		"model.numclasses":          74,
		"model.inputname":           "input",
		"model.outputname":          "output",
		"model.numthreads":          2,
		"labels.path":               "config/labels.yaml",
		"preprocess.interpolation":  InterpolationBilinear,
		"preprocess.autoorient":     true,
		"preprocess.maxdecodebytes": 20 << 20,
		"feedback.baseurl":          "https://api.bharatpashudhan.org/",
		"feedback.timeout":          "15s",
		"feedback.retrycount":       0,
		"feedback.jpegquality":      100,
		"feedback.maxuploadbytes":   8 << 20,
	}
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	cfg, err := Load(filePath)
	if err != nil {
		return err
	}
	Config = *cfg
	return nil
}

// Load reads defaults, then the YAML file at filePath (if not empty), then
// CFG_ prefixed environment variables, and validates the result.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	switch cfg.Model.Backend {
	case BackendTFLite, BackendONNX:
	default:
		return fmt.Errorf("model.backend must be %q or %q, got %q", BackendTFLite, BackendONNX, cfg.Model.Backend)
	}
	if cfg.Model.InputWidth <= 0 || cfg.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size must be positive, got %dx%d", cfg.Model.InputWidth, cfg.Model.InputHeight)
	}
	if cfg.Model.NumClasses <= 0 {
		return fmt.Errorf("model.numclasses must be positive, got %d", cfg.Model.NumClasses)
	}

	switch cfg.Preprocess.Interpolation {
	case InterpolationBilinear, InterpolationCatmullRom, InterpolationLanczos3:
	default:
		return fmt.Errorf("unknown preprocess.interpolation %q", cfg.Preprocess.Interpolation)
	}

	if cfg.Feedback.JPEGQuality < 1 || cfg.Feedback.JPEGQuality > 100 {
		return fmt.Errorf("feedback.jpegquality must be within 1..100, got %d", cfg.Feedback.JPEGQuality)
	}
	if cfg.Feedback.Timeout <= 0 {
		return fmt.Errorf("feedback.timeout must be positive")
	}
	if cfg.Feedback.MaxUploadBytes <= 0 {
		return fmt.Errorf("feedback.maxuploadbytes must be positive")
	}
	u, err := url.Parse(cfg.Feedback.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feedback.baseurl %q is not an absolute URL", cfg.Feedback.BaseURL)
	}

	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag registers the -file flag on fs, allowing clients to specify
// the relative path to the file from which the configuration will be loaded.
func ParseConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("file", defaultConfigPath, "configuration file")
}
