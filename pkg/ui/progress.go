package ui

import (
	"fmt"
	"io"
	"strings"
)

const (
	ProgressFill  = "█"
	ProgressEmpty = "-"
)

// ProgressBar renders a single-line, carriage-return refreshed progress bar:
//
//	Progress: |█████████████████████████-------------------------| 50.0%  (1/2) Complete
type ProgressBar struct {
	out      io.Writer
	Prefix   string
	Suffix   string
	Length   int
	Decimals int
}

// NewProgressBar creates a 50 wide bar writing to out
func NewProgressBar(out io.Writer) *ProgressBar {
	if out == nil {
		out = Out
	}
	return &ProgressBar{
		out:      out,
		Prefix:   "Progress:",
		Suffix:   "Complete",
		Length:   50,
		Decimals: 1,
	}
}

// Render returns the bar for iteration of total, without the leading \r.
// A non-positive total renders as complete.
func (p *ProgressBar) Render(iteration, total int) string {
	ratio := 1.0
	filled := p.Length
	if total > 0 {
		ratio = float64(iteration) / float64(total)
		filled = p.Length * iteration / total
	}
	if filled > p.Length {
		filled = p.Length
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat(ProgressFill, filled) + strings.Repeat(ProgressEmpty, p.Length-filled)
	percent := fmt.Sprintf("%.*f", p.Decimals, 100*ratio)

	return fmt.Sprintf("%s |%s| %s%%  (%d/%d) %s", p.Prefix, bar, percent, iteration, total, p.Suffix)
}

// Update redraws the bar in place
func (p *ProgressBar) Update(iteration, total int) {
	fmt.Fprintf(p.out, "\r%s", p.Render(iteration, total))
}

// Finish ends the line the bar was drawn on
func (p *ProgressBar) Finish() {
	fmt.Fprintln(p.out)
}
