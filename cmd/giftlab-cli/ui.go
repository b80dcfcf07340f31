package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI writes human or JSON output for a command.
type UI struct {
	out      io.Writer
	errOut   io.Writer
	noColor  bool
	jsonMode bool
	// interactive enables bars and spinners; they garble piped output.
	interactive bool
}

// NewUI creates a UI writing to out, with progress on errOut.
func NewUI(out, errOut io.Writer, jsonMode, noColor bool) *UI {
	return &UI{
		out:         out,
		errOut:      errOut,
		noColor:     noColor || !isTerminal(out),
		jsonMode:    jsonMode,
		interactive: !jsonMode && isTerminal(errOut),
	}
}

// JSON encodes v as indented JSON.
func (ui *UI) JSON(v interface{}) error {
	enc := json.NewEncoder(ui.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (ui *UI) printf(attr color.Attribute, prefix, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	line := fmt.Sprintf("%s %s\n", prefix, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(ui.out, line)
		return
	}
	color.New(attr).Fprint(ui.out, line)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.printf(color.FgGreen, "✓", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.printf(color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.printf(color.FgCyan, "ℹ", format, args...)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	header := fmt.Sprintf("━━━ %s ━━━", strings.ToUpper(title))
	fmt.Fprintln(ui.out)
	if ui.noColor {
		fmt.Fprintln(ui.out, header)
	} else {
		color.New(color.FgMagenta, color.Bold).Fprintln(ui.out, header)
	}
	fmt.Fprintln(ui.out)
}

// KeyValue prints a key-value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %s: %v\n", key, value)
		return
	}
	color.New(color.FgYellow).Fprintf(ui.out, "  %s: ", key)
	fmt.Fprintf(ui.out, "%v\n", value)
}

// Text prints a block of text as is.
func (ui *UI) Text(text string) {
	if ui.jsonMode {
		return
	}
	fmt.Fprintln(ui.out, text)
}

// Newline prints a newline.
func (ui *UI) Newline() {
	if !ui.jsonMode {
		fmt.Fprintln(ui.out)
	}
}

// Table prints rows under headers with padded columns.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	rule := "+"
	for _, w := range widths {
		rule += strings.Repeat("-", w+2) + "+"
	}
	line := func(cells []string) string {
		var b strings.Builder
		b.WriteString("|")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			fmt.Fprintf(&b, " %-*s |", w, cell)
		}
		return b.String()
	}

	fmt.Fprintln(ui.out, rule)
	if ui.noColor {
		fmt.Fprintln(ui.out, line(headers))
	} else {
		color.New(color.FgCyan, color.Bold).Fprintln(ui.out, line(headers))
	}
	fmt.Fprintln(ui.out, rule)
	for _, row := range rows {
		fmt.Fprintln(ui.out, line(row))
	}
	fmt.Fprintln(ui.out, rule)
}

// LoadBars tracks per-table byte progress of a CSV import.
type LoadBars struct {
	progress *mpb.Progress
	bars     map[string]*mpb.Bar
}

// NewLoadBars creates one bar per table with a known dataset size. It
// returns nil when the UI is not interactive.
func (ui *UI) NewLoadBars(sizes map[string]int64, order []string) *LoadBars {
	if !ui.interactive {
		return nil
	}
	p := mpb.New(mpb.WithOutput(ui.errOut), mpb.WithWidth(64))
	lb := &LoadBars{progress: p, bars: make(map[string]*mpb.Bar)}
	for _, name := range order {
		size, ok := sizes[name]
		if !ok || size <= 0 {
			continue
		}
		lb.bars[name] = p.AddBar(size,
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WC{W: 5}),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
			),
		)
	}
	return lb
}

// Update moves a table's bar to done bytes.
func (lb *LoadBars) Update(table string, done, _ int64) {
	if lb == nil {
		return
	}
	if bar, ok := lb.bars[table]; ok {
		bar.SetCurrent(done)
	}
}

// Finish completes every bar, including skipped tables, and waits for the
// final render.
func (lb *LoadBars) Finish() {
	if lb == nil {
		return
	}
	for _, bar := range lb.bars {
		bar.SetTotal(-1, true)
	}
	lb.progress.Wait()
}

// BatchBar counts processed items in a batch run.
type BatchBar struct {
	bar *progressbar.ProgressBar
}

// NewBatchBar creates a counting bar, or nil when the UI is not interactive.
func (ui *UI) NewBatchBar(total int, description string) *BatchBar {
	if !ui.interactive {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ui.errOut),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("customers"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(ui.errOut, "\n")
		}),
	)
	return &BatchBar{bar: bar}
}

// Add advances the bar by one.
func (b *BatchBar) Add() {
	if b == nil {
		return
	}
	_ = b.bar.Add(1)
}

// Finish completes the bar.
func (b *BatchBar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}

// Spinner shows indeterminate progress while waiting on a remote call.
type Spinner struct {
	s *spinner.Spinner
}

// StartSpinner starts a spinner with message, or returns nil when the UI is
// not interactive.
func (ui *UI) StartSpinner(message string) *Spinner {
	if !ui.interactive {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(ui.errOut))
	s.Suffix = " " + message
	s.Start()
	return &Spinner{s: s}
}

// Stop stops the spinner and clears its line.
func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.s.Stop()
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *r)
}
