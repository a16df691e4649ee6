package docpdf

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultMaxHTMLBytes guards the preview size handed to the browser.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

// Browser owns a lazily started headless Chromium shared by all tabs.
type Browser struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string
	// AllowExternal lets previews fetch http(s) assets. Previews inline
	// their images, so external requests are blocked by default.
	AllowExternal bool
	MaxHTMLBytes  int64

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Close releases Chromium resources if they have been initialized.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

// run loads html into a fresh tab and executes actions against it.
func (b *Browser) run(ctx context.Context, html []byte, before []chromedp.Action, after ...chromedp.Action) error {
	if b == nil {
		return docgen.NewError(docgen.KindInternal, "chromium browser is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(html) == 0 {
		return docgen.NewError(docgen.KindValidation, "preview html is empty", nil)
	}
	limit := b.MaxHTMLBytes
	if limit <= 0 {
		limit = DefaultMaxHTMLBytes
	}
	if int64(len(html)) > limit {
		return docgen.NewError(docgen.KindValidation, "preview html exceeds size limit", nil)
	}

	if err := b.ensureBrowser(); err != nil {
		return docgen.NewError(docgen.KindInternal, "chromium init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if b.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, b.Timeout)
		defer cancelTimeout()
	}

	actions := []chromedp.Action{}
	if !b.AllowExternal {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs().WithURLPatterns(externalBlockPatterns()),
		)
	}
	actions = append(actions, before...)
	actions = append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	actions = append(actions, after...)

	if err := chromedp.Run(execCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return docgen.NewError(docgen.KindTimeout, "chromium timed out", err)
		}
		return err
	}
	return nil
}

func (b *Browser) ensureBrowser() error {
	b.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if b.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(b.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", b.Headless))
		options = append(options, allocatorOptionsFromArgs(b.Args)...)

		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)
	})
	if b.allocCtx == nil || b.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}

func externalBlockPatterns() []*network.BlockPattern {
	return []*network.BlockPattern{
		{URLPattern: "http://*", Block: true},
		{URLPattern: "https://*", Block: true},
	}
}
