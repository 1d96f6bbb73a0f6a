package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidHold is returned when a hold value cannot be decoded.
var ErrInvalidHold = errors.New("invalid hold value")

// HoldKind tags the variant stored in a HoldMode.
type HoldKind int

// Hold kinds.
const (
	HoldKindNone      HoldKind = iota // no hold parameter
	HoldKindThreshold                 // float threshold for continuous signals
	HoldKindBars                      // classic k-bar mandatory hold
)

// HoldMode is the hold parameter of a backtest: absent, a float threshold
// consumed by position translation, or an integer bar count consumed by the
// classic hold filter. The zero value is HoldNone.
type HoldMode struct {
	kind      HoldKind
	threshold float64
	bars      int
}

// HoldNone returns the absent hold mode.
func HoldNone() HoldMode {
	return HoldMode{}
}

// HoldThreshold returns a threshold hold mode.
func HoldThreshold(t float64) HoldMode {
	return HoldMode{kind: HoldKindThreshold, threshold: t}
}

// HoldBars returns a k-bar hold mode.
func HoldBars(k int) HoldMode {
	return HoldMode{kind: HoldKindBars, bars: k}
}

// Kind returns the variant tag.
func (h HoldMode) Kind() HoldKind {
	return h.kind
}

// Threshold returns the threshold and true for HoldKindThreshold.
func (h HoldMode) Threshold() (float64, bool) {
	return h.threshold, h.kind == HoldKindThreshold
}

// Bars returns the bar count and true for HoldKindBars.
func (h HoldMode) Bars() (int, bool) {
	return h.bars, h.kind == HoldKindBars
}

// String renders the hold mode so that ParseHold(h.String()) == h.
func (h HoldMode) String() string {
	switch h.kind {
	case HoldKindThreshold:
		return formatThreshold(h.threshold)
	case HoldKindBars:
		return strconv.Itoa(h.bars)
	default:
		return "none"
	}
}

// ParseHold decodes a textual hold value. Empty, "none" and "null" give
// HoldNone; a number written with a decimal point or exponent gives
// HoldThreshold; a plain integer gives HoldBars.
func ParseHold(s string) (HoldMode, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "null":
		return HoldNone(), nil
	}

	if strings.ContainsAny(s, ".eE") || strings.EqualFold(s, "nan") || strings.Contains(strings.ToLower(s), "inf") {
		t, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return HoldMode{}, fmt.Errorf("%w: %q", ErrInvalidHold, s)
		}
		return HoldThreshold(t), nil
	}

	k, err := strconv.Atoi(s)
	if err != nil {
		return HoldMode{}, fmt.Errorf("%w: %q", ErrInvalidHold, s)
	}
	return HoldBars(k), nil
}

// MarshalJSON encodes HoldNone as null, thresholds as floats and bar counts
// as integers.
func (h HoldMode) MarshalJSON() ([]byte, error) {
	switch h.kind {
	case HoldKindThreshold:
		return []byte(formatThreshold(h.threshold)), nil
	case HoldKindBars:
		return []byte(strconv.Itoa(h.bars)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a JSON number or a string understood by ParseHold.
func (h *HoldMode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidHold, data)
		}
		parsed, err := ParseHold(s)
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	}

	parsed, err := ParseHold(string(data))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// UnmarshalYAML maps an !!int node to HoldBars, a !!float node to
// HoldThreshold and a null node to HoldNone.
func (h *HoldMode) UnmarshalYAML(value *yaml.Node) error {
	switch value.ShortTag() {
	case "!!null":
		*h = HoldNone()
	case "!!int":
		k, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidHold, value.Value)
		}
		*h = HoldBars(k)
	case "!!float":
		var t float64
		if err := value.Decode(&t); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidHold, value.Value)
		}
		*h = HoldThreshold(t)
	case "!!str":
		parsed, err := ParseHold(value.Value)
		if err != nil {
			return err
		}
		*h = parsed
	default:
		return fmt.Errorf("%w: unexpected yaml tag %s", ErrInvalidHold, value.ShortTag())
	}
	return nil
}

// MarshalYAML keeps thresholds tagged as floats so whole-number thresholds
// do not decode back as bar counts.
func (h HoldMode) MarshalYAML() (interface{}, error) {
	switch h.kind {
	case HoldKindThreshold:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatThreshold(h.threshold)}, nil
	case HoldKindBars:
		return h.bars, nil
	default:
		return nil, nil
	}
}

func formatThreshold(t float64) string {
	s := strconv.FormatFloat(t, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
