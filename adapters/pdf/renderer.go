package docpdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-schooldocs/docgen"
)

const defaultPrintScale = 1.0

var lengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

// PrintOptions tunes vector PDF output.
type PrintOptions struct {
	Scale        float64
	MarginTop    string
	MarginBottom string
	MarginLeft   string
	MarginRight  string
}

// PrintEncoder prints the captured preview HTML to a vector PDF.
type PrintEncoder struct {
	Browser *Browser
	Options PrintOptions
}

var _ docgen.Encoder = (*PrintEncoder)(nil)

// Encode prints capture.HTML on the page described by spec.
func (e *PrintEncoder) Encode(ctx context.Context, capture docgen.Capture, spec docgen.PageSpec) ([]byte, error) {
	if e == nil || e.Browser == nil {
		return nil, docgen.NewError(docgen.KindInternal, "print encoder browser is nil", nil)
	}
	params, err := buildPrintToPDFParams(spec, e.Options)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	err = e.Browser.run(ctx, capture.HTML, nil,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)
	if err != nil {
		if kind := docgen.KindFromError(err); kind != docgen.KindInternal {
			return nil, err
		}
		return nil, docgen.NewError(docgen.KindExport, "chromium pdf print failed", err)
	}
	return pdf, nil
}

func buildPrintToPDFParams(spec docgen.PageSpec, opts PrintOptions) (*page.PrintToPDFParams, error) {
	if spec.WidthMM <= 0 || spec.HeightMM <= 0 {
		return nil, docgen.NewError(docgen.KindValidation, "page size is required", nil)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = defaultPrintScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, docgen.NewError(docgen.KindValidation, "pdf scale must be between 0.1 and 2.0", nil)
	}

	short, long := spec.WidthMM, spec.HeightMM
	if short > long {
		short, long = long, short
	}
	params := page.PrintToPDF().
		WithScale(scale).
		WithPrintBackground(true).
		WithLandscape(spec.Landscape()).
		WithPaperWidth(short / 25.4).
		WithPaperHeight(long / 25.4).
		WithMarginTop(0).
		WithMarginBottom(0).
		WithMarginLeft(0).
		WithMarginRight(0)

	// The With* builders return copies, so margins are set on the fields.
	margins := []struct {
		value string
		field *float64
	}{
		{opts.MarginTop, &params.MarginTop},
		{opts.MarginBottom, &params.MarginBottom},
		{opts.MarginLeft, &params.MarginLeft},
		{opts.MarginRight, &params.MarginRight},
	}
	for _, margin := range margins {
		if margin.value == "" {
			continue
		}
		inches, err := parseLengthInches(margin.value)
		if err != nil {
			return nil, err
		}
		*margin.field = inches
	}
	return params, nil
}

func parseLengthInches(value string) (float64, error) {
	matches := lengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), nil)
	}
	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), err)
	}
	switch unit := strings.ToLower(matches[2]); unit {
	case "", "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / 96.0, nil
	default:
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("unsupported pdf length unit: %s", unit), nil)
	}
}

// WKHTMLTOPDFEncoder prints preview HTML with the wkhtmltopdf binary.
type WKHTMLTOPDFEncoder struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

var _ docgen.Encoder = WKHTMLTOPDFEncoder{}

// Encode pipes capture.HTML through wkhtmltopdf on stdin/stdout.
func (e WKHTMLTOPDFEncoder) Encode(ctx context.Context, capture docgen.Capture, spec docgen.PageSpec) ([]byte, error) {
	if len(capture.HTML) == 0 {
		return nil, docgen.NewError(docgen.KindValidation, "preview html is empty", nil)
	}
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, cmdPath, wkhtmltopdfArgs(spec, e.Args)...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(capture.HTML)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, docgen.NewError(docgen.KindExport, message, err)
	}
	return stdout.Bytes(), nil
}

func wkhtmltopdfArgs(spec docgen.PageSpec, extra []string) []string {
	orientation := "Portrait"
	if spec.Landscape() {
		orientation = "Landscape"
	}
	size := spec.Size
	if size == "" {
		size = docgen.PageSizeA4
	}
	args := []string{
		"--quiet",
		"--page-size", size,
		"--orientation", orientation,
		"--margin-top", "0",
		"--margin-bottom", "0",
		"--margin-left", "0",
		"--margin-right", "0",
		"--print-media-type",
	}
	args = append(args, extra...)
	return append(args, "-", "-")
}
