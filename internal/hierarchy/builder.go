package hierarchy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
)

// Builder creates a hierarchy for an attribute from the distinct raw values
// observed in the data.
type Builder interface {
	Build(attribute string, values []string) (*Hierarchy, error)
}

// Order is the direction in which characters are redacted
type Order string

const (
	RightToLeft Order = "right_to_left"
	LeftToRight Order = "left_to_right"
)

// RedactionBuilder pads every value to the longest value's length and masks
// one more character per level. Values are padded on the side where masking
// ends so that equal suffixes (or prefixes) stay aligned.
type RedactionBuilder struct {
	Order   Order
	Padding rune
	Mask    rune
}

// Build implements Builder
func (b RedactionBuilder) Build(attribute string, values []string) (*Hierarchy, error) {
	if len(values) == 0 {
		return nil, emptyDomain(attribute)
	}
	order := b.Order
	if order == "" {
		order = RightToLeft
	}
	if order != RightToLeft && order != LeftToRight {
		return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
			fmt.Sprintf("unknown redaction order %q", b.Order))
	}
	padding, mask := b.Padding, b.Mask
	if padding == 0 {
		padding = ' '
	}
	if mask == 0 {
		mask = '*'
	}

	width := 0
	for _, v := range values {
		if n := utf8.RuneCountInString(v); n > width {
			width = n
		}
	}

	rows := make([][]string, len(values))
	for i, v := range values {
		runes := []rune(v)
		pad := []rune(strings.Repeat(string(padding), width-len(runes)))
		if order == RightToLeft {
			runes = append(pad, runes...)
		} else {
			runes = append(runes, pad...)
		}

		row := make([]string, width+1)
		row[0] = v
		masked := append([]rune(nil), runes...)
		for level := 1; level <= width; level++ {
			if order == RightToLeft {
				masked[width-level] = mask
			} else {
				masked[level-1] = mask
			}
			row[level] = string(masked)
		}
		rows[i] = row
	}
	return FromRows(attribute, rows)
}

// IntervalBuilder buckets numeric values into half-open intervals, one width
// per level. Each width must be a multiple of the previous one so buckets
// nest.
type IntervalBuilder struct {
	Widths []float64
	// Top appends a final level that maps every value to the wildcard
	Top bool
}

// Build implements Builder
func (b IntervalBuilder) Build(attribute string, values []string) (*Hierarchy, error) {
	if len(values) == 0 {
		return nil, emptyDomain(attribute)
	}
	for i, w := range b.Widths {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
				fmt.Sprintf("interval width %v for %q must be positive", w, attribute))
		}
		if i > 0 {
			ratio := w / b.Widths[i-1]
			if ratio <= 1 || math.Abs(ratio-math.Round(ratio)) > 1e-9 {
				return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
					fmt.Sprintf("interval width %v for %q is not a multiple of %v", w, attribute, b.Widths[i-1]))
			}
		}
	}

	levels := len(b.Widths)
	if b.Top {
		levels++
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.NewUnknownValueError(attribute, v)
		}
		row := make([]string, levels+1)
		row[0] = v
		for l, w := range b.Widths {
			lo := math.Floor(x/w) * w
			row[l+1] = fmt.Sprintf("[%s, %s[", formatBound(lo), formatBound(lo+w))
		}
		if b.Top {
			row[levels] = constants.WildcardMarker
		}
		rows[i] = row
	}
	return FromRows(attribute, rows)
}

// MaskBuilder replaces every character with the mask, so values only stay
// distinguishable by their length.
type MaskBuilder struct {
	Mask rune
	Top  bool
}

// Build implements Builder
func (b MaskBuilder) Build(attribute string, values []string) (*Hierarchy, error) {
	if len(values) == 0 {
		return nil, emptyDomain(attribute)
	}
	mask := b.Mask
	if mask == 0 {
		mask = '*'
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		row := []string{v, strings.Repeat(string(mask), utf8.RuneCountInString(v))}
		if b.Top {
			row = append(row, constants.WildcardMarker)
		}
		rows[i] = row
	}
	return FromRows(attribute, rows)
}

// DateGranularity is one generalization step of a date
type DateGranularity string

const (
	GranularityMonth  DateGranularity = "month"
	GranularityYear   DateGranularity = "year"
	GranularityDecade DateGranularity = "decade"
)

// DateBuilder truncates dates to coarser granularities, finest first
type DateBuilder struct {
	Layout        string
	Granularities []DateGranularity
	Top           bool
}

// Build implements Builder
func (b DateBuilder) Build(attribute string, values []string) (*Hierarchy, error) {
	if len(values) == 0 {
		return nil, emptyDomain(attribute)
	}
	layout := b.Layout
	if layout == "" {
		layout = "2006-01-02"
	}
	grans := b.Granularities
	if len(grans) == 0 {
		grans = []DateGranularity{GranularityMonth, GranularityYear, GranularityDecade}
	}

	rows := make([][]string, len(values))
	for i, v := range values {
		t, err := time.Parse(layout, strings.TrimSpace(v))
		if err != nil {
			return nil, errors.NewUnknownValueError(attribute, v)
		}
		row := []string{v}
		for _, g := range grans {
			switch g {
			case GranularityMonth:
				row = append(row, t.Format("2006-01"))
			case GranularityYear:
				row = append(row, t.Format("2006"))
			case GranularityDecade:
				row = append(row, fmt.Sprintf("%03d*", t.Year()/10))
			default:
				return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
					fmt.Sprintf("unknown date granularity %q", g))
			}
		}
		if b.Top {
			row = append(row, constants.WildcardMarker)
		}
		rows[i] = row
	}
	return FromRows(attribute, rows)
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func emptyDomain(attribute string) error {
	return errors.NewConfigurationError(errors.CodeInvalidHierarchy,
		fmt.Sprintf("hierarchy %q has no values", attribute))
}
