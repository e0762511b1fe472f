package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// A4 in inches, as expected by Page.printToPDF.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

// DocumentGenerator turns a complete HTML document into PDF bytes.
type DocumentGenerator interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

type ChromeOptions struct {
	ExecPath      string
	Timeout       time.Duration
	MaxConcurrent int64
}

// ChromeGenerator renders with a headless Chrome that is started for a single
// render and torn down afterwards, whatever the outcome.
type ChromeGenerator struct {
	opts ChromeOptions
	sem  *semaphore.Weighted
	log  logrus.FieldLogger
}

func NewChromeGenerator(opts ChromeOptions, log logrus.FieldLogger) *ChromeGenerator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	return &ChromeGenerator{
		opts: opts,
		sem:  semaphore.NewWeighted(opts.MaxConcurrent),
		log:  log,
	}
}

func (g *ChromeGenerator) Render(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for a free renderer: %v", ErrRender, err)
	}
	defer g.sem.Release(1)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if g.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(g.opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Start the browser before attaching listeners.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("%w: starting browser: %v", ErrRender, err)
	}

	// Idle events can arrive for the initial blank page and before Navigate
	// returns the new loader id, so every idle loader is recorded.
	var (
		mu         sync.Mutex
		idleLoader = make(map[cdp.LoaderID]bool)
		idleSignal = make(chan struct{}, 1)
	)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			mu.Lock()
			idleLoader[e.LoaderID] = true
			mu.Unlock()
			select {
			case idleSignal <- struct{}{}:
			default:
			}
		}
	})
	loaderIdle := func(id cdp.LoaderID) bool {
		mu.Lock()
		defer mu.Unlock()
		return idleLoader[id]
	}

	var pdf []byte
	url := "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
	err := chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, loaderID, errorText, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("navigation failed: %s", errorText)
			}
			for !loaderIdle(loaderID) {
				select {
				case <-idleSignal:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		g.log.WithError(err).Warn("headless render failed")
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: renderer returned an empty document", ErrRender)
	}
	return pdf, nil
}
