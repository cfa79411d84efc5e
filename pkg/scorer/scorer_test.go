package scorer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
	"github.com/instill-ai/breed-recognition/pkg/scorer"
)

var shape = scorer.Shape{Width: 4, Height: 2, NumClasses: 3}

func TestShape(t *testing.T) {
	assert.Equal(t, 24, shape.InputLen())
	assert.NoError(t, shape.CheckInput(make(datamodel.Tensor, 24)))
	assert.True(t, errors.Is(shape.CheckInput(make(datamodel.Tensor, 23)), datamodel.ErrScoring))
	assert.NoError(t, shape.CheckOutput(make(datamodel.Distribution, 3)))
	assert.True(t, errors.Is(shape.CheckOutput(make(datamodel.Distribution, 74)), datamodel.ErrScoring))
}

func TestShape_CheckLabels(t *testing.T) {
	assert.NoError(t, shape.CheckLabels(3))
	assert.NoError(t, shape.CheckLabels(1), "a partial label set is allowed")
	assert.Error(t, shape.CheckLabels(4))
}

func TestChecked(t *testing.T) {
	calls := 0
	inner := scorer.Func(func(_ context.Context, tensor datamodel.Tensor) (datamodel.Distribution, error) {
		calls++
		return datamodel.Distribution{0.1, 0.7, 0.2}, nil
	})
	s := &scorer.Checked{Scorer: inner, Shape: shape}

	dist, err := s.Score(context.Background(), make(datamodel.Tensor, 24))
	require.NoError(t, err)
	assert.Equal(t, datamodel.Distribution{0.1, 0.7, 0.2}, dist)

	_, err = s.Score(context.Background(), make(datamodel.Tensor, 3))
	assert.True(t, errors.Is(err, datamodel.ErrScoring))
	assert.Equal(t, 1, calls, "mismatched tensor must not reach the model")

	assert.NoError(t, s.Close())
}

func TestChecked_BadOutput(t *testing.T) {
	inner := scorer.Func(func(context.Context, datamodel.Tensor) (datamodel.Distribution, error) {
		return datamodel.Distribution{1}, nil
	})
	s := &scorer.Checked{Scorer: inner, Shape: shape}

	_, err := s.Score(context.Background(), make(datamodel.Tensor, 24))
	assert.True(t, errors.Is(err, datamodel.ErrScoring))
}

func TestParseManifest(t *testing.T) {
	m, err := scorer.ParseManifest([]byte(`{"input_shape":[1,224,224,3],"output_shape":[1,74],"image_size":224,"num_classes":74}`))
	require.NoError(t, err)
	assert.Equal(t, scorer.Shape{Width: 224, Height: 224, NumClasses: 74}, scorer.ManifestShape(m))

	m, err = scorer.ParseManifest([]byte(`{"input_shape":[160,200,3],"output_shape":[10]}`))
	require.NoError(t, err)
	assert.Equal(t, scorer.Shape{Width: 200, Height: 160, NumClasses: 10}, scorer.ManifestShape(m))
}

func TestParseManifest_Rejects(t *testing.T) {
	testCases := map[string]string{
		"not json":           `{`,
		"missing output":     `{"input_shape":[1,224,224,3]}`,
		"channel first":      `{"input_shape":[1,3,224,224],"output_shape":[1,74]}`,
		"batch of two":       `{"input_shape":[2,224,224,3],"output_shape":[1,74]}`,
		"class mismatch":     `{"input_shape":[1,224,224,3],"output_shape":[1,74],"num_classes":73}`,
		"image size differs": `{"input_shape":[1,224,224,3],"output_shape":[1,74],"image_size":256}`,
	}

	for name, doc := range testCases {
		_, err := scorer.ParseManifest([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input_shape":[1,224,224,3],"output_shape":[1,74]}`), 0644))

	_, err := scorer.LoadManifest(path)
	require.NoError(t, err)

	_, err = scorer.LoadManifest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
