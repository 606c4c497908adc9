package cmd

import (
	"fmt"
	"io"
	"strings"
)

// progressBar is a simple terminal progress bar that writes to stderr.
type progressBar struct {
	total       int
	current     int
	width       int
	description string
	writer      io.Writer
	finished    bool
}

// newProgressBar creates a new progress bar. A zero total can be set later
// through Set.
func newProgressBar(total int, description string, writer io.Writer) *progressBar {
	return &progressBar{
		total:       total,
		width:       30,
		description: description,
		writer:      writer,
	}
}

// Set moves the bar to done of total and finishes it when done reaches
// total. Its signature matches features.WithProgress.
func (p *progressBar) Set(done, total int) {
	p.total = total
	p.current = min(done, total)
	if p.current == p.total {
		p.Finish()
		return
	}
	p.render()
}

// Finish completes the progress bar and prints a newline, once.
func (p *progressBar) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

// render draws the progress bar to the writer using carriage return.
func (p *progressBar) render() {
	if p.total <= 0 {
		return
	}

	filled := min(p.current*p.width/p.total, p.width)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", p.width-filled)
	fmt.Fprintf(p.writer, "\r%s [%s] %d/%d", p.description, bar, p.current, p.total)
}
