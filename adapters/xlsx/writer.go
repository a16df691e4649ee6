// Package docxlsx exports the table of a school document as an XLSX workbook.
package docxlsx

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows      = 1048576
	maxSheetName      = 31
	defaultDateFormat = "yyyy-mm-dd"
	defaultFloatFmt   = "#,##0.00"
	modelDateLayout   = "2006-01-02"
)

var totalLabels = docgen.LocalizedText{"en": "Total", "bn": "মোট"}

// Writer renders the schema table with a header block and a totals row for
// summed columns.
type Writer struct {
	MaxRows int
}

var _ docgen.SheetWriter = Writer{}

// WriteSheet writes the workbook to w and returns the bytes written.
func (wr Writer) WriteSheet(ctx context.Context, schema docgen.Schema, model docgen.DocumentModel, locale string, w io.Writer) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	table, ok := schema.TableField()
	if !ok {
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("%s has no table to export", schema.Type), nil)
	}
	items := model.Items(table.Name)
	maxRows := wr.MaxRows
	if maxRows <= 0 || maxRows > excelMaxRows-8 {
		maxRows = excelMaxRows - 8
	}
	if len(items) > maxRows {
		return 0, docgen.NewError(docgen.KindValidation, "table exceeds row limit", nil)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheetName := sheetNameFor(schema, locale)
	if current := file.GetSheetName(0); current != sheetName {
		file.SetSheetName(current, sheetName)
	}
	styles, err := buildStyles(file)
	if err != nil {
		return 0, docgen.NewError(docgen.KindExport, "build sheet styles", err)
	}
	stream, err := file.NewStreamWriter(sheetName)
	if err != nil {
		return 0, docgen.NewError(docgen.KindExport, "open sheet stream", err)
	}

	rowIndex := 1
	setRow := func(cells []any) error {
		if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), cells); err != nil {
			return docgen.NewError(docgen.KindExport, fmt.Sprintf("write row %d", rowIndex), err)
		}
		rowIndex++
		return nil
	}

	if err := setRow([]any{excelize.Cell{StyleID: styles.title, Value: schema.Title.Get(locale)}}); err != nil {
		return 0, err
	}
	for _, field := range schema.Fields {
		if field.Kind == docgen.KindList || field.Kind == docgen.KindImage || field.Kind == docgen.KindRichText {
			continue
		}
		if !field.Identity && !field.Required {
			continue
		}
		value := model.String(field.Name)
		if field.Kind == docgen.KindEnum && value != "" {
			value = field.EnumLabel(value, locale)
		}
		if err := setRow([]any{
			excelize.Cell{StyleID: styles.header, Value: label(field, locale)},
			excelize.Cell{Value: value},
		}); err != nil {
			return 0, err
		}
	}
	rowIndex++

	headers := make([]any, len(table.Fields))
	for i, field := range table.Fields {
		headers[i] = excelize.Cell{StyleID: styles.header, Value: label(field, locale)}
	}
	if err := setRow(headers); err != nil {
		return 0, err
	}

	firstData := rowIndex
	sums := make([]float64, len(table.Fields))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		cells := make([]any, len(table.Fields))
		for i, field := range table.Fields {
			cell, n := buildCell(field, item, locale, styles)
			if field.Sum {
				sums[i] += n
			}
			cells[i] = cell
		}
		if err := setRow(cells); err != nil {
			return 0, err
		}
	}

	if hasSum(table.Fields) {
		lastData := rowIndex - 1
		cells := make([]any, len(table.Fields))
		for i, field := range table.Fields {
			switch {
			case field.Sum:
				col, err := excelize.ColumnNumberToName(i + 1)
				if err != nil {
					return 0, docgen.NewError(docgen.KindExport, "column name", err)
				}
				cell := excelize.Cell{StyleID: styles.totalNumber, Value: sums[i]}
				if lastData >= firstData {
					cell.Formula = fmt.Sprintf("SUM(%s%d:%s%d)", col, firstData, col, lastData)
				}
				cells[i] = cell
			case i == 0:
				cells[i] = excelize.Cell{StyleID: styles.header, Value: totalLabels.Get(locale)}
			default:
				cells[i] = excelize.Cell{StyleID: styles.header, Value: ""}
			}
		}
		if err := setRow(cells); err != nil {
			return 0, err
		}
	}

	if err := stream.Flush(); err != nil {
		return 0, docgen.NewError(docgen.KindExport, "flush sheet", err)
	}
	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return cw.count, docgen.NewError(docgen.KindExport, "write workbook", err)
	}
	return cw.count, nil
}

type sheetStyles struct {
	title       int
	header      int
	date        int
	number      int
	totalNumber int
}

func buildStyles(file *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.title, err = file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	if s.header, err = file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	dateFmt := defaultDateFormat
	if s.date, err = file.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt}); err != nil {
		return s, err
	}
	floatFmt := defaultFloatFmt
	if s.number, err = file.NewStyle(&excelize.Style{CustomNumFmt: &floatFmt}); err != nil {
		return s, err
	}
	if s.totalNumber, err = file.NewStyle(&excelize.Style{CustomNumFmt: &floatFmt, Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	return s, nil
}

// buildCell returns the typed cell and its numeric value for summing.
func buildCell(field docgen.FieldSpec, item docgen.DocumentModel, locale string, styles sheetStyles) (excelize.Cell, float64) {
	text := item.String(field.Name)
	if text == "" {
		return excelize.Cell{Value: ""}, 0
	}
	switch field.Kind {
	case docgen.KindNumber:
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return excelize.Cell{StyleID: styles.number, Value: n}, n
		}
	case docgen.KindInteger:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return excelize.Cell{Value: n}, float64(n)
		}
	case docgen.KindDate:
		if ts, err := time.Parse(modelDateLayout, text); err == nil {
			return excelize.Cell{StyleID: styles.date, Value: ts}, 0
		}
	case docgen.KindEnum:
		return excelize.Cell{Value: field.EnumLabel(text, locale)}, 0
	}
	return excelize.Cell{Value: text}, 0
}

func hasSum(fields []docgen.FieldSpec) bool {
	for _, field := range fields {
		if field.Sum {
			return true
		}
	}
	return false
}

func label(field docgen.FieldSpec, locale string) string {
	if text := field.Label.Get(locale); text != "" {
		return text
	}
	return field.Name
}

func sheetNameFor(schema docgen.Schema, locale string) string {
	name := schema.Title.Get(locale)
	if name == "" {
		name = string(schema.Type)
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}
