// Package report turns scored records into the results table and the chart
// datasets consumed by the UI.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mchmarny/trackscore/pkg/dataset"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
)

const (
	// DefaultIDColumn is the header of the student number question in the
	// survey export.
	DefaultIDColumn = "Quel est ton numéro étudiant ? (eXXXXXX, iXXXXXX ...)"

	LabelIPS          = "Score IPS"
	LabelASTRE        = "Score ASTRE"
	DistributionTitle = "Répartition IPS vs ASTRE"

	colorIPS         = "rgba(255, 99, 132, 1)"
	colorIPSLight    = "rgba(255, 99, 132, 0.2)"
	colorIPSMedium   = "rgba(255, 99, 132, 0.6)"
	colorASTRE       = "rgba(54, 162, 235, 1)"
	colorASTRELight  = "rgba(54, 162, 235, 0.2)"
	colorASTREMedium = "rgba(54, 162, 235, 0.6)"

	scoreFormat = "%.2f"
)

// SeriesData is a labelled series.
type SeriesData[T any] struct {
	Labels []string `json:"labels" yaml:"labels"`
	Data   []T      `json:"data" yaml:"data"`
}

// Distribution counts students per predicted track.
type Distribution struct {
	SeriesData[int] `yaml:",inline"`
	Title           string   `json:"title" yaml:"title"`
	Colors          []string `json:"colors" yaml:"colors"`
}

// Dataset is one series of a bar chart.
type Dataset struct {
	Label           string    `json:"label" yaml:"label"`
	Data            []float64 `json:"data" yaml:"data"`
	BackgroundColor string    `json:"backgroundColor" yaml:"backgroundColor"`
	BorderColor     string    `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty" yaml:"borderWidth,omitempty"`
}

// Chart is a bar chart with one label per student.
type Chart struct {
	Labels   []string  `json:"labels" yaml:"labels"`
	Datasets []Dataset `json:"datasets" yaml:"datasets"`
}

// Row is one line of the results table.
type Row struct {
	ID        string           `json:"id" yaml:"id"`
	IPS       string           `json:"ips" yaml:"ips"`
	ASTRE     string           `json:"astre" yaml:"astre"`
	Predicted hypothesis.Track `json:"predicted" yaml:"predicted"`
}

// View bundles everything the UI renders.
type View struct {
	Import       *dataset.ImportInfo `json:"import,omitempty" yaml:"import,omitempty"`
	Table        []Row               `json:"table" yaml:"table"`
	Bar          *Chart              `json:"bar" yaml:"bar"`
	Distribution *Distribution       `json:"distribution" yaml:"distribution"`
	Divergent    *Chart              `json:"divergent" yaml:"divergent"`
}

// Build renders all outputs for records.
func Build(records []dataset.Record, idColumn string) *View {
	return &View{
		Table:        Table(records, idColumn),
		Bar:          Bar(records, idColumn),
		Distribution: Distribute(records),
		Divergent:    Divergent(records, idColumn),
	}
}

// Label returns the identifier of the record at position i. Records without
// the identifier column are labelled by their 1-based position.
func Label(r dataset.Record, i int, idColumn string) string {
	if id, ok := r.ID(idColumn); ok && id != "" {
		return id
	}
	return fmt.Sprintf("#%d", i+1)
}

// Table returns one row per record with scores fixed to two decimals.
func Table(records []dataset.Record, idColumn string) []Row {
	rows := make([]Row, 0, len(records))
	for i, r := range records {
		rows = append(rows, Row{
			ID:        Label(r, i, idColumn),
			IPS:       fmt.Sprintf(scoreFormat, r.IPS),
			ASTRE:     fmt.Sprintf(scoreFormat, r.ASTRE),
			Predicted: r.Predicted(),
		})
	}
	return rows
}

// Bar returns the grouped IPS/ASTRE bar dataset.
func Bar(records []dataset.Record, idColumn string) *Chart {
	labels, ips, astre := series(records, idColumn)
	return &Chart{
		Labels: labels,
		Datasets: []Dataset{
			{Label: LabelIPS, Data: ips, BackgroundColor: colorIPSLight, BorderColor: colorIPS, BorderWidth: 1},
			{Label: LabelASTRE, Data: astre, BackgroundColor: colorASTRELight, BorderColor: colorASTRE, BorderWidth: 1},
		},
	}
}

// Distribute counts predicted tracks. It uses the same tie rule as the
// table so both views always agree.
func Distribute(records []dataset.Record) *Distribution {
	var nIPS, nASTRE int
	for _, r := range records {
		if r.Predicted() == hypothesis.TrackIPS {
			nIPS++
		} else {
			nASTRE++
		}
	}
	return &Distribution{
		SeriesData: SeriesData[int]{
			Labels: []string{string(hypothesis.TrackIPS), string(hypothesis.TrackASTRE)},
			Data:   []int{nIPS, nASTRE},
		},
		Title:  DistributionTitle,
		Colors: []string{colorIPSMedium, colorASTREMedium},
	}
}

// Divergent returns IPS scores and sign-negated ASTRE scores so the two
// series extend in opposite directions.
func Divergent(records []dataset.Record, idColumn string) *Chart {
	labels, ips, astre := series(records, idColumn)
	for i := range astre {
		if astre[i] != 0 {
			astre[i] = -astre[i]
		}
	}
	return &Chart{
		Labels: labels,
		Datasets: []Dataset{
			{Label: LabelIPS, Data: ips, BackgroundColor: colorIPSMedium},
			{Label: LabelASTRE, Data: astre, BackgroundColor: colorASTREMedium},
		},
	}
}

func series(records []dataset.Record, idColumn string) (labels []string, ips, astre []float64) {
	labels = make([]string, 0, len(records))
	ips = make([]float64, 0, len(records))
	astre = make([]float64, 0, len(records))
	for i, r := range records {
		labels = append(labels, Label(r, i, idColumn))
		ips = append(ips, r.IPS)
		astre = append(astre, r.ASTRE)
	}
	return labels, ips, astre
}

// WriteTable prints the results table as aligned text.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDENT\tIPS\tASTRE\tPREDICTED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.IPS, r.ASTRE, r.Predicted)
	}
	return tw.Flush()
}
