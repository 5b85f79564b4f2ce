// Package scoring computes the IPS and ASTRE scores of one student.
package scoring

import (
	"github.com/mchmarny/trackscore/pkg/hypothesis"
)

// Answers maps a survey column name to the student's raw answer.
type Answers map[string]string

// Lookup returns the answer to question. A missing key yields ("", false),
// the "no answer" case, which never matches a hypothesis.
func (a Answers) Lookup(question string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a[question]
	return v, ok
}

// Result holds the two bucket scores of one student.
type Result struct {
	IPS   float64 `json:"ipsScore" yaml:"ipsScore"`
	ASTRE float64 `json:"astreScore" yaml:"astreScore"`
}

// Predicted returns the predicted track of the result.
func (r Result) Predicted() hypothesis.Track {
	return Predict(r)
}

// Score sums, per track, the weights of every hypothesis whose accepted
// answers contain the student's answer. Missing answers, unmatched answers
// and unknown tracks contribute nothing.
func Score(answers Answers, hypotheses []hypothesis.Hypothesis) Result {
	var r Result
	for _, h := range hypotheses {
		answer, ok := answers.Lookup(h.Question)
		if !ok || !h.Accepts(answer) {
			continue
		}

		switch h.Track {
		case hypothesis.TrackIPS:
			r.IPS += h.Weight
		case hypothesis.TrackASTRE:
			r.ASTRE += h.Weight
		}
	}
	return r
}

// Predict returns IPS when the IPS score is strictly greater, ASTRE otherwise.
// Ties go to ASTRE.
func Predict(r Result) hypothesis.Track {
	if r.IPS > r.ASTRE {
		return hypothesis.TrackIPS
	}
	return hypothesis.TrackASTRE
}
