package scorer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
)

// LoadManifest reads and validates a model manifest JSON file.
func LoadManifest(path string) (*datamodel.ModelManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(b)
}

// ParseManifest decodes and validates a model manifest. The input layout must
// be channel-last with 3 channels, [N,]H,W,3.
func ParseManifest(b []byte) (*datamodel.ModelManifest, error) {
	if err := datamodel.InitJSONSchema(); err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := datamodel.ValidateJSONSchema(datamodel.ManifestJSONSchema, raw); err != nil {
		return nil, fmt.Errorf("manifest does not match schema: %w", err)
	}

	var m datamodel.ModelManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.InputShape[len(m.InputShape)-1] != datamodel.Channels {
		return nil, fmt.Errorf("manifest input shape %v is not channel-last RGB", m.InputShape)
	}
	if len(m.InputShape) == 4 && m.InputShape[0] != 1 {
		return nil, fmt.Errorf("manifest batch size must be 1, got %d", m.InputShape[0])
	}
	if n := len(m.InputShape); m.ImageSize != 0 && (m.InputShape[n-3] != int64(m.ImageSize) || m.InputShape[n-2] != int64(m.ImageSize)) {
		return nil, fmt.Errorf("manifest image_size %d disagrees with input shape %v", m.ImageSize, m.InputShape)
	}
	if m.NumClasses != 0 && int64(m.NumClasses) != m.OutputShape[len(m.OutputShape)-1] {
		return nil, fmt.Errorf("manifest num_classes %d disagrees with output shape %v", m.NumClasses, m.OutputShape)
	}

	return &m, nil
}

// ManifestShape returns the I/O contract a manifest describes.
func ManifestShape(m *datamodel.ModelManifest) Shape {
	n := len(m.InputShape)
	return Shape{
		Height:     int(m.InputShape[n-3]),
		Width:      int(m.InputShape[n-2]),
		NumClasses: int(m.OutputShape[len(m.OutputShape)-1]),
	}
}
