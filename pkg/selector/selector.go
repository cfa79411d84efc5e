package selector

import (
	"fmt"
	"sort"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
)

// Select returns the top-1 prediction of dist. On exact ties the lowest index
// wins. The confidence is dist[top] × 100 and is not clamped. An index the
// label set does not map is reported as datamodel.UnknownLabel.
func Select(dist datamodel.Distribution, labels *datamodel.LabelSet) (*datamodel.PredictionResult, error) {
	if len(dist) == 0 {
		return nil, fmt.Errorf("%w: empty distribution", datamodel.ErrScoring)
	}

	maxIdx := 0
	maxVal := dist[0]
	for i := 1; i < len(dist); i++ {
		if dist[i] > maxVal {
			maxVal = dist[i]
			maxIdx = i
		}
	}

	return &datamodel.PredictionResult{
		Distribution:      dist,
		TopIndex:          maxIdx,
		TopLabel:          labelName(labels, maxIdx),
		ConfidencePercent: float64(maxVal) * 100,
	}, nil
}

// TopK ranks the k highest-scoring indices of dist, keeping index order on
// ties. k larger than the distribution returns every index.
func TopK(dist datamodel.Distribution, labels *datamodel.LabelSet, k int) []datamodel.RankedLabel {
	if k <= 0 {
		return nil
	}

	order := make([]int, len(dist))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] > dist[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	ranked := make([]datamodel.RankedLabel, k)
	for i := 0; i < k; i++ {
		idx := order[i]
		ranked[i] = datamodel.RankedLabel{
			Index:             idx,
			Label:             labelName(labels, idx),
			ConfidencePercent: float64(dist[idx]) * 100,
		}
	}
	return ranked
}

func labelName(labels *datamodel.LabelSet, idx int) string {
	if labels == nil {
		return datamodel.UnknownLabel
	}
	if name, ok := labels.Name(idx); ok {
		return name
	}
	return datamodel.UnknownLabel
}
