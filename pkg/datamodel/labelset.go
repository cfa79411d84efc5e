package datamodel

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Label is one index → breed name entry of the label resource.
type Label struct {
	Index int    `yaml:"index" json:"index"`
	Name  string `yaml:"name" json:"name"`
}

type labelDocument struct {
	Labels []Label `yaml:"labels" json:"labels"`
}

// LabelSet is the dense index → breed name mapping shared by the scorer,
// the selector and the feedback coordinator. It is read-only once built.
type LabelSet struct {
	names []string
	index map[string]int
}

// NewLabelSet builds a LabelSet where names[i] is the breed at index i.
// Names must be non-empty and unique.
func NewLabelSet(names []string) (*LabelSet, error) {
	if len(names) == 0 {
		return nil, errors.New("label set is empty")
	}

	ls := &LabelSet{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, errors.Errorf("label %d has an empty name", i)
		}
		if prev, ok := ls.index[n]; ok {
			return nil, errors.Errorf("label %q is used by index %d and %d", n, prev, i)
		}
		ls.names[i] = n
		ls.index[n] = i
	}
	return ls, nil
}

// ParseLabelSet decodes a YAML label document, validates it against
// LabelsJSONSchema and checks that indices are dense from 0.
func ParseLabelSet(data []byte) (*LabelSet, error) {
	if err := InitJSONSchema(); err != nil {
		return nil, errors.Wrap(err, "compiling label schema")
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding label document")
	}
	if err := ValidateJSONSchema(LabelsJSONSchema, raw); err != nil {
		return nil, errors.Wrap(err, "label document does not match schema")
	}

	var doc labelDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding label document")
	}

	sort.SliceStable(doc.Labels, func(i, j int) bool { return doc.Labels[i].Index < doc.Labels[j].Index })
	names := make([]string, len(doc.Labels))
	for i, l := range doc.Labels {
		if l.Index != i {
			return nil, errors.Errorf("label indices must be dense from 0: expected %d, got %d", i, l.Index)
		}
		names[i] = l.Name
	}

	return NewLabelSet(names)
}

// LoadLabelSet reads and parses the label document at path.
func LoadLabelSet(path string) (*LabelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading labels %s", path)
	}
	return ParseLabelSet(data)
}

// Len returns the number of mapped indices.
func (l *LabelSet) Len() int { return len(l.names) }

// Name returns the breed name at index i.
func (l *LabelSet) Name(i int) (string, bool) {
	if i < 0 || i >= len(l.names) {
		return "", false
	}
	return l.names[i], true
}

// IndexOf resolves a breed name by exact match, or -1 when it is not mapped.
func (l *LabelSet) IndexOf(name string) int {
	if i, ok := l.index[name]; ok {
		return i
	}
	return -1
}

// Names returns the breed names in index order.
func (l *LabelSet) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}
