// Package export writes timelines and diffs as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spec-kit/repair-tracker/internal/timeline"
)

const (
	countsSheet  = "Counts"
	membersSheet = "Members"
	maxSheetName = 31
)

var titleCase = cases.Title(language.English)

// Workbook describes what goes into an export.
type Workbook struct {
	EpicKey   string
	Title     string
	Timeline  *timeline.Timeline
	Diffs     []timeline.DiffResult
	PeakLabel string // defaults to the first label
}

// Exporter renders workbooks. Non-working days from the calendar are shaded.
type Exporter struct {
	calendar *timeline.Calendar
}

// NewExporter constructs an exporter. cal may be nil.
func NewExporter(cal *timeline.Calendar) *Exporter {
	return &Exporter{calendar: cal}
}

// Write renders wb as XLSX into w.
func (e *Exporter) Write(w io.Writer, wb Workbook) error {
	f, err := e.build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveAs renders wb into the file at path.
func (e *Exporter) SaveAs(path string, wb Workbook) error {
	f, err := e.build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (e *Exporter) build(wb Workbook) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", countsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := e.writeCounts(f, styles, wb); err != nil {
		f.Close()
		return nil, fmt.Errorf("counts sheet: %w", err)
	}
	if _, err := f.NewSheet(membersSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeMembers(f, styles, wb.Timeline); err != nil {
		f.Close()
		return nil, fmt.Errorf("members sheet: %w", err)
	}
	for i, diff := range wb.Diffs {
		name := sanitizeSheetName(fmt.Sprintf("Diff %d %s", i+1, diff.Label))
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeDiff(f, styles, name, diff); err != nil {
			f.Close()
			return nil, fmt.Errorf("diff sheet %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

type styles struct {
	header  int
	shaded  int
	heading int
}

func newStyles(f *excelize.File) (styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#000000", Style: 1},
		{Type: "right", Color: "#000000", Style: 1},
		{Type: "top", Color: "#000000", Style: 1},
		{Type: "bottom", Color: "#000000", Style: 1},
	}
	var (
		s   styles
		err error
	)
	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	}); err != nil {
		return s, err
	}
	if s.shaded, err = f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
		Border: border,
	}); err != nil {
		return s, err
	}
	if s.heading, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	return s, nil
}

// sheetWriter keeps the first error of a run of cell writes.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.sheet, cell, value)
}

func (w *sheetWriter) style(fromCol, fromRow, toCol, toRow, style int) {
	if w.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, from, to, style)
}

func (e *Exporter) writeCounts(f *excelize.File, st styles, wb Workbook) error {
	w := &sheetWriter{f: f, sheet: countsSheet}
	heading := strings.TrimSpace(wb.EpicKey + " " + titleCase.String(wb.Title))
	w.set(1, 1, heading)
	w.style(1, 1, 1, 1, st.heading)

	tl := wb.Timeline
	if tl.Len() == 0 {
		w.set(1, 3, "No data")
		return w.err
	}

	const headerRow = 3
	w.set(1, headerRow, "Day")
	for i, label := range tl.Labels {
		w.set(i+2, headerRow, label)
	}
	w.style(1, headerRow, len(tl.Labels)+1, headerRow, st.header)

	for r, day := range tl.Days {
		row := headerRow + 1 + r
		w.set(1, row, day)
		for c, label := range tl.Labels {
			w.set(c+2, row, len(tl.MembersOf(day, label)))
		}
		if e.calendar != nil && !e.calendar.IsWorkday(day) {
			w.style(1, row, len(tl.Labels)+1, row, st.shaded)
		}
	}

	peakLabel := wb.PeakLabel
	if peakLabel == "" {
		peakLabel = tl.Labels[0]
	}
	if peak, ok := timeline.PeakOf(tl, peakLabel); ok {
		row := headerRow + len(tl.Days) + 2
		w.set(1, row, "Max "+peak.Label)
		w.set(2, row, peak.Count)
		w.set(3, row, peak.Day)
	}
	if w.err == nil {
		w.err = f.SetPanes(countsSheet, &excelize.Panes{
			Freeze: true, XSplit: 1, YSplit: headerRow, TopLeftCell: "B4", ActivePane: "bottomRight",
		})
	}
	return w.err
}

func writeMembers(f *excelize.File, st styles, tl *timeline.Timeline) error {
	w := &sheetWriter{f: f, sheet: membersSheet}
	headers := []string{"Day", "Label", "Serial", "Key"}
	for i, h := range headers {
		w.set(i+1, 1, h)
	}
	w.style(1, 1, len(headers), 1, st.header)
	if tl == nil {
		return w.err
	}

	row := 2
	for _, day := range tl.Days {
		for _, label := range tl.Labels {
			if tl.IsAggregate(label) {
				continue
			}
			for _, id := range tl.MembersOf(day, label) {
				w.set(1, row, day)
				w.set(2, row, label)
				w.set(3, row, tl.Serial(id))
				w.set(4, row, id)
				row++
			}
		}
	}
	return w.err
}

func writeDiff(f *excelize.File, st styles, sheet string, diff timeline.DiffResult) error {
	w := &sheetWriter{f: f, sheet: sheet}
	w.set(1, 1, fmt.Sprintf("%s: %s -> %s", diff.Label, diff.From, diff.To))
	w.style(1, 1, 1, 1, st.heading)

	buckets := []struct {
		name  string
		items []timeline.DiffItem
	}{
		{"removed", diff.Removed},
		{"unchanged", diff.Unchanged},
		{"added", diff.Added},
	}
	for c, bucket := range buckets {
		col := c + 1
		w.set(col, 3, fmt.Sprintf("%s (%d)", titleCase.String(bucket.name), len(bucket.items)))
		for r, item := range bucket.items {
			w.set(col, 4+r, item.Display)
		}
	}
	w.style(1, 3, len(buckets), 3, st.header)
	return w.err
}

func sanitizeSheetName(name string) string {
	name = strings.NewReplacer("/", "-", `\`, "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-").Replace(name)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
