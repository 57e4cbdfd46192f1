package ui

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBarRender(t *testing.T) {
	p := NewProgressBar(&bytes.Buffer{})

	tests := []struct {
		iteration, total int
		filled           int
		percent          string
	}{
		{0, 4, 0, "0.0%"},
		{1, 2, 25, "50.0%"},
		{1, 3, 16, "33.3%"},
		{2, 3, 33, "66.7%"},
		{3, 3, 50, "100.0%"},
		{0, 0, 50, "100.0%"},
	}

	for _, tt := range tests {
		got := p.Render(tt.iteration, tt.total)
		want := "Progress: |" +
			strings.Repeat("█", tt.filled) + strings.Repeat("-", 50-tt.filled) +
			"| " + tt.percent + "  (" + strconv.Itoa(tt.iteration) + "/" + strconv.Itoa(tt.total) + ") Complete"
		assert.Equal(t, want, got, "%d/%d", tt.iteration, tt.total)
	}
}

func TestProgressBarUpdateUsesCarriageReturn(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf)

	p.Update(1, 2)
	p.Update(2, 2)
	p.Finish()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.True(t, strings.HasPrefix(out, "\rProgress: |"))
	assert.True(t, strings.HasSuffix(out, "(2/2) Complete\n"))
}

func TestPrintHelpersWriteToOut(t *testing.T) {
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	defer func() { Out = prev }()

	PrintInfo("Child", "Ada")
	PrintWarning("No new images")
	PrintError("Failed", "boom")

	out := buf.String()
	assert.Contains(t, out, "Child")
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "No new images")
	assert.Contains(t, out, "Failed: boom")
}
