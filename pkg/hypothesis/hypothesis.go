package hypothesis

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// MinWeight and MaxWeight bound every hypothesis weight.
	MinWeight = 0.0
	MaxWeight = 1.0

	// WeightStep is the increment used by the interactive weight controls.
	WeightStep = 0.1
)

// Track is the score bucket a hypothesis contributes to.
type Track string

const (
	TrackIPS   Track = "IPS"
	TrackASTRE Track = "ASTRE"
)

// Tracks lists the known tracks in display order.
var Tracks = []Track{TrackIPS, TrackASTRE}

// Known reports whether t is one of the two scored tracks.
func (t Track) Known() bool {
	return t == TrackIPS || t == TrackASTRE
}

func (t Track) String() string {
	return string(t)
}

// Hypothesis is a weighted rule: a student whose answer to Question is one of
// AcceptedAnswers earns Weight toward Track.
type Hypothesis struct {
	Label           string   `json:"label" yaml:"label"`
	Question        string   `json:"question" yaml:"question"`
	Track           Track    `json:"track" yaml:"track"`
	AcceptedAnswers []string `json:"acceptedAnswers" yaml:"acceptedAnswers"`
	Weight          float64  `json:"weight" yaml:"weight"`
}

// Key names the hypothesis in logs. It is not unique within a registry, see
// Registry.Keys for the stable identity of each position.
func (h Hypothesis) Key() string {
	return strings.Join([]string{string(h.Track), h.Question, h.Label}, "/")
}

// answersKey returns the accepted answers sorted and joined, independent of
// their order in the configuration.
func (h Hypothesis) answersKey() string {
	list := make([]string, len(h.AcceptedAnswers))
	copy(list, h.AcceptedAnswers)
	sort.Strings(list)
	return strings.Join(list, "|")
}

// Accepts reports whether answer is one of the accepted answers.
func (h Hypothesis) Accepts(answer string) bool {
	for _, a := range h.AcceptedAnswers {
		if a == answer {
			return true
		}
	}
	return false
}

// ClampWeight bounds v to [MinWeight, MaxWeight]. NaN becomes MinWeight.
func ClampWeight(v float64) float64 {
	switch {
	case math.IsNaN(v), v < MinWeight:
		return MinWeight
	case v > MaxWeight:
		return MaxWeight
	default:
		return v
	}
}

// NormalizeText returns the NFC form of s so that canonically equivalent
// answers exported by different tools compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}
