package hypothesis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

var (
	errEmptyPayload  = errors.New("payload is empty")
	errNoHypotheses  = errors.New("no hypotheses defined")
	errMissingField  = errors.New("required field missing")
	errUnknownFormat = errors.New("payload is neither a mapping nor a sequence")
)

// definition is the wire form of one hypothesis. The French keys are the
// ones used by the survey tooling that first produced these files.
type definition struct {
	Label           *string  `json:"label" yaml:"label"`
	Libelle         *string  `json:"libelle" yaml:"libelle"`
	Question        *string  `json:"question" yaml:"question"`
	Track           *string  `json:"track" yaml:"track"`
	Filiere         *string  `json:"filiere" yaml:"filiere"`
	AcceptedAnswers []string `json:"acceptedAnswers" yaml:"acceptedAnswers"`
	Choices         []string `json:"choices" yaml:"choices"`
	Weight          *float64 `json:"weight" yaml:"weight"`
}

type document struct {
	Hypotheses []definition `json:"hypotheses" yaml:"hypotheses"`
}

// Load parses a JSON or YAML configuration payload into a Registry.
// The payload is either a mapping with a `hypotheses` sequence or the bare
// sequence itself.
func Load(payload []byte) (*Registry, error) {
	defs, err := decode(payload)
	if err != nil {
		return nil, err
	}

	if len(defs) == 0 {
		return nil, NewConfigError(errNoHypotheses)
	}

	items := make([]Hypothesis, 0, len(defs))
	for i, d := range defs {
		h, err := d.toHypothesis(i)
		if err != nil {
			return nil, err
		}
		if !h.Track.Known() {
			slog.Warn("hypothesis track is not scored", "entry", i, "label", h.Label, "track", h.Track)
		}
		items = append(items, h)
	}

	slog.Debug("hypotheses loaded", "count", len(items))
	return NewRegistry(items), nil
}

func decode(payload []byte) ([]definition, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, NewConfigError(errEmptyPayload)
	}

	switch trimmed[0] {
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, NewConfigError(fmt.Errorf("decoding JSON: %w", err))
		}
		return doc.Hypotheses, nil
	case '[':
		var defs []definition
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, NewConfigError(fmt.Errorf("decoding JSON: %w", err))
		}
		return defs, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, NewConfigError(fmt.Errorf("decoding YAML: %w", err))
	}
	if len(node.Content) == 0 {
		return nil, NewConfigError(errEmptyPayload)
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, NewConfigError(fmt.Errorf("decoding YAML: %w", err))
		}
		return doc.Hypotheses, nil
	case yaml.SequenceNode:
		var defs []definition
		if err := root.Decode(&defs); err != nil {
			return nil, NewConfigError(fmt.Errorf("decoding YAML: %w", err))
		}
		return defs, nil
	default:
		return nil, NewConfigError(errUnknownFormat)
	}
}

func (d definition) toHypothesis(entry int) (Hypothesis, error) {
	label := firstNonEmpty(d.Label, d.Libelle)
	if label == "" {
		return Hypothesis{}, missing(entry, "label")
	}

	question := firstNonEmpty(d.Question)
	if question == "" {
		return Hypothesis{}, missing(entry, "question")
	}

	track := firstNonEmpty(d.Track, d.Filiere)
	if track == "" {
		return Hypothesis{}, missing(entry, "track")
	}

	answers := d.AcceptedAnswers
	if answers == nil {
		answers = d.Choices
	}
	if answers == nil {
		return Hypothesis{}, missing(entry, "acceptedAnswers")
	}

	if d.Weight == nil {
		return Hypothesis{}, missing(entry, "weight")
	}

	weight := ClampWeight(*d.Weight)
	if weight != *d.Weight {
		slog.Warn("hypothesis weight clamped", "entry", entry, "label", label, "from", *d.Weight, "to", weight)
	}

	normalized := make([]string, len(answers))
	for i, a := range answers {
		normalized[i] = NormalizeText(a)
	}

	return Hypothesis{
		Label:           label,
		Question:        NormalizeText(question),
		Track:           Track(track),
		AcceptedAnswers: normalized,
		Weight:          weight,
	}, nil
}

func missing(entry int, field string) error {
	return &ConfigError{Entry: entry, Field: field, Err: errMissingField}
}

func firstNonEmpty(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
