//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package stats collects phase timings and byte counters for a
// session and renders them as the human-readable report named in the
// wire format's optional stats file.
package stats

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/markkurossi/tabulate"

	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

// Timing records one session's phase samples (internal/session
// records two: the offline phase and all queries together) and
// renders a report at the end of the run.
type Timing struct {
	Start   time.Time
	Samples []*Sample
}

// NewTiming starts a new Timing, with its clock running from now.
func NewTiming() *Timing {
	return &Timing{
		Start: time.Now(),
	}
}

// Sample closes out the preceding sample (if any) and opens a new
// one labelled label, with cols holding any extra per-row figures
// (e.g. "n=1024", "okvs m=1187").
func (t *Timing) Sample(label string, cols []string) *Sample {
	start := t.Start
	if len(t.Samples) > 0 {
		start = t.Samples[len(t.Samples)-1].End
	}
	sample := &Sample{
		Label: label,
		Start: start,
		End:   time.Now(),
		Cols:  cols,
	}
	t.Samples = append(t.Samples, sample)
	return sample
}

// Print renders the phase timings and the connection's byte counters
// as a table on standard output.
func (t *Timing) Print(ioStats p2p.IOStats) {
	t.Render(os.Stdout, ioStats)
}

// Render writes the same table Print shows on standard output to an
// arbitrary writer, so that the stats file (see package stats'
// report.go) can capture it without duplicating the layout.
func (t *Timing) Render(w io.Writer, ioStats p2p.IOStats) {
	if len(t.Samples) == 0 {
		return
	}

	sent := ioStats.Sent.Load()
	received := ioStats.Recvd.Load()
	flushed := ioStats.Flushed.Load()

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Phase").SetAlign(tabulate.ML)
	tab.Header("Time").SetAlign(tabulate.MR)
	tab.Header("%").SetAlign(tabulate.MR)
	tab.Header("Xfer").SetAlign(tabulate.MR)

	total := t.Samples[len(t.Samples)-1].End.Sub(t.Start)
	for _, sample := range t.Samples {
		row := tab.Row()
		row.Column(sample.Label)

		duration := sample.End.Sub(sample.Start)
		row.Column(duration.String())
		row.Column(fmt.Sprintf("%.2f%%",
			float64(duration)/float64(total)*100))

		for _, col := range sample.Cols {
			row.Column(col)
		}

		for idx, sub := range sample.Samples {
			row := tab.Row()

			var prefix string
			if idx+1 >= len(sample.Samples) {
				prefix = "╰╴"
			} else {
				prefix = "├╴"
			}

			row.Column(prefix + sub.Label).SetFormat(tabulate.FmtItalic)

			var d time.Duration
			if sub.Abs > 0 {
				d = sub.Abs
			} else {
				d = sub.End.Sub(sub.Start)
			}
			row.Column(d.String()).SetFormat(tabulate.FmtItalic)

			row.Column(
				fmt.Sprintf("%.2f%%", float64(d)/float64(duration)*100)).
				SetFormat(tabulate.FmtItalic)
		}
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtBold)
	row.Column(t.Samples[len(t.Samples)-1].End.Sub(t.Start).String()).
		SetFormat(tabulate.FmtBold)
	row.Column("").SetFormat(tabulate.FmtBold)
	row.Column(FileSize(sent + received).String()).SetFormat(tabulate.FmtBold)

	row = tab.Row()
	row.Column("├╴Sent").SetFormat(tabulate.FmtItalic)
	row.Column("")
	row.Column(
		fmt.Sprintf("%.2f%%", float64(sent)/float64(sent+received)*100)).
		SetFormat(tabulate.FmtItalic)
	row.Column(FileSize(sent).String()).SetFormat(tabulate.FmtItalic)

	row = tab.Row()
	row.Column("├╴Rcvd").SetFormat(tabulate.FmtItalic)
	row.Column("")
	row.Column(
		fmt.Sprintf("%.2f%%", float64(received)/float64(sent+received)*100)).
		SetFormat(tabulate.FmtItalic)
	row.Column(FileSize(received).String()).SetFormat(tabulate.FmtItalic)

	row = tab.Row()
	row.Column("╰╴Flcd").SetFormat(tabulate.FmtItalic)
	row.Column("")
	row.Column("")
	row.Column(fmt.Sprintf("%v", flushed)).SetFormat(tabulate.FmtItalic)

	tab.Print(w)
}

// Sample holds the timing for one session phase, plus any
// sub-samples recorded within it (e.g. the OKVS solve and the HE
// encrypt steps within a single fingerprint round).
type Sample struct {
	Label   string
	Start   time.Time
	End     time.Time
	Abs     time.Duration
	Cols    []string
	Samples []*Sample
}

// SubSample adds a sub-sample ending at end to s.
func (s *Sample) SubSample(label string, end time.Time) {
	start := s.Start
	if len(s.Samples) > 0 {
		start = s.Samples[len(s.Samples)-1].End
	}
	s.Samples = append(s.Samples, &Sample{
		Label: label,
		Start: start,
		End:   end,
	})
}

// AbsSubSample adds a sub-sample with an already-known duration,
// rather than start/end timestamps, for figures accumulated across
// several non-contiguous operations (e.g. total OT extension time
// across every delivered fingerprint).
func (s *Sample) AbsSubSample(label string, duration time.Duration) {
	s.Samples = append(s.Samples, &Sample{
		Label: label,
		Abs:   duration,
	})
}

// FileSize renders a byte count with a human-readable unit suffix.
type FileSize uint64

func (s FileSize) String() string {
	switch {
	case s > 1000*1000*1000*1000:
		return fmt.Sprintf("%dTB", s/(1000*1000*1000*1000))
	case s > 1000*1000*1000:
		return fmt.Sprintf("%dGB", s/(1000*1000*1000))
	case s > 1000*1000:
		return fmt.Sprintf("%dMB", s/(1000*1000))
	case s > 1000:
		return fmt.Sprintf("%dkB", s/1000)
	default:
		return fmt.Sprintf("%dB", s)
	}
}
