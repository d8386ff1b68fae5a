package preprocess

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/opst/backorder/pkg/table"
)

var (
	ErrUnseenLabel  = errors.New("label not seen at fit time")
	ErrMissingLabel = errors.New("missing target label")
)

// LabelEncoder codes target labels by their position in sorted Classes.
type LabelEncoder struct {
	Classes []string
}

// FitLabels learns target classes from a train column.
//
// Numeric targets are handled by their decimal representation.
func FitLabels(target table.Column) (*LabelEncoder, error) {
	labels, err := Labels(target)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNoRows
	}
	seen := map[string]struct{}{}
	classes := []string{}
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}, nil
}

func (e *LabelEncoder) Encode(target table.Column) ([]int, error) {
	labels, err := Labels(target)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		c := sort.SearchStrings(e.Classes, l)
		if len(e.Classes) <= c || e.Classes[c] != l {
			return nil, fmt.Errorf("%w: %q (row %d)", ErrUnseenLabel, l, i)
		}
		out[i] = c
	}
	return out, nil
}

func (e *LabelEncoder) Decode(codes []int) ([]string, error) {
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || len(e.Classes) <= c {
			return nil, fmt.Errorf("%w: class code %d", ErrUnseenLabel, c)
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

// Labels reads target labels of a column.
// Numeric values are formatted in decimal. Missing labels are errors.
func Labels(c table.Column) ([]string, error) {
	out := make([]string, c.Len())
	for i := range out {
		if c.IsMissing(i) {
			return nil, fmt.Errorf("%w: %s (row %d)", ErrMissingLabel, c.Name, i)
		}
		if c.Kind == table.Numeric {
			out[i] = strconv.FormatFloat(c.Numbers[i], 'g', -1, 64)
		} else {
			out[i] = c.Labels[i]
		}
	}
	return out, nil
}
