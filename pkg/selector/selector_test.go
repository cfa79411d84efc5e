package selector

import (
	"errors"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
)

func labels(c *quicktest.C) *datamodel.LabelSet {
	ls, err := datamodel.NewLabelSet([]string{"Gir", "Sahiwal", "Red Sindhi"})
	c.Assert(err, quicktest.IsNil)
	return ls
}

func TestSelect_TieLowestIndexWins(t *testing.T) {
	c := quicktest.New(t)

	res, err := Select(datamodel.Distribution{0.2, 0.5, 0.5, 0.1}, labels(c))
	c.Assert(err, quicktest.IsNil)
	c.Assert(res.TopIndex, quicktest.Equals, 1)
	c.Assert(res.TopLabel, quicktest.Equals, "Sahiwal")
}

func TestSelect_Confidence(t *testing.T) {
	c := quicktest.New(t)

	res, err := Select(datamodel.Distribution{0.1, 0.873, 0.027}, labels(c))
	c.Assert(err, quicktest.IsNil)
	c.Assert(res.TopIndex, quicktest.Equals, 1)
	c.Assert(res.ConfidencePercent > 87.299 && res.ConfidencePercent < 87.301, quicktest.IsTrue,
		quicktest.Commentf("confidence %v", res.ConfidencePercent))
	c.Assert(res.String(), quicktest.Equals, "Breed: Sahiwal\nConfidence: 87.3%")
}

func TestSelect_UnmappedIndex(t *testing.T) {
	c := quicktest.New(t)

	dist := make(datamodel.Distribution, 74)
	dist[40] = 0.9
	res, err := Select(dist, labels(c))
	c.Assert(err, quicktest.IsNil)
	c.Assert(res.TopIndex, quicktest.Equals, 40)
	c.Assert(res.TopLabel, quicktest.Equals, datamodel.UnknownLabel)

	res, err = Select(dist, nil)
	c.Assert(err, quicktest.IsNil)
	c.Assert(res.TopLabel, quicktest.Equals, datamodel.UnknownLabel)
}

func TestSelect_NotRenormalized(t *testing.T) {
	c := quicktest.New(t)

	res, err := Select(datamodel.Distribution{3, 1}, labels(c))
	c.Assert(err, quicktest.IsNil)
	c.Assert(res.ConfidencePercent, quicktest.Equals, 300.0)
}

func TestSelect_Empty(t *testing.T) {
	c := quicktest.New(t)

	_, err := Select(nil, labels(c))
	c.Assert(errors.Is(err, datamodel.ErrScoring), quicktest.IsTrue)
}

func TestTopK(t *testing.T) {
	c := quicktest.New(t)

	dist := datamodel.Distribution{0.2, 0.5, 0.25, 0.5, 0.05}
	ranked := TopK(dist, labels(c), 3)

	c.Assert(len(ranked), quicktest.Equals, 3)
	c.Assert(ranked[0].Index, quicktest.Equals, 1)
	c.Assert(ranked[1].Index, quicktest.Equals, 3)
	c.Assert(ranked[1].Label, quicktest.Equals, datamodel.UnknownLabel)
	c.Assert(ranked[2].Index, quicktest.Equals, 2)
	c.Assert(ranked[2].Label, quicktest.Equals, "Red Sindhi")

	c.Assert(len(TopK(dist, labels(c), 10)), quicktest.Equals, 5)
	c.Assert(TopK(dist, labels(c), 0), quicktest.IsNil)
}
