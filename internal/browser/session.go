// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
	"github.com/xkilldash9x/scriptfill/internal/config"
)

const (
	closeTimeout = 10 * time.Second
	// focusBacklog bounds focus reports waiting for delivery.
	focusBacklog = 64
)

// cdpEvaluator evaluates expressions through chromedp. The context passed to
// Evaluate must descend from the tab context.
type cdpEvaluator struct{}

func (cdpEvaluator) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return chromedp.Run(ctx, chromedp.Evaluate(expression, res))
}

// Session is one browser tab with the detection runtime installed.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig
	page   *Page
	focus  chan string

	mu       sync.Mutex
	isClosed bool
}

// allocatorFlags lists the Chrome command line flags for cfg.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                 cfg.Headless,
		"disable-gpu":              cfg.Headless,
		"no-first-run":             true,
		"no-default-browser-check": true,
		"disable-dev-shm-usage":    true,
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", w, h)
	}
	for _, arg := range cfg.Args {
		name, value := splitFlag(arg)
		if name == "" {
			continue
		}
		if value == "" {
			flags[name] = true
		} else {
			flags[name] = value
		}
	}
	return flags
}

// splitFlag parses "--name=value" or "--name".
func splitFlag(arg string) (string, string) {
	name, value, _ := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
	return name, value
}

// AllocatorOptions builds the exec allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// NewSession launches Chrome, or attaches to cfg.RemoteURL when set, and
// prepares a tab: the focus binding is exposed and the runtime is installed
// for every new document.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	logger = logger.Named("browser").With(zap.String("session_id", id))

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithDebugf(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	s := &Session{
		id:     id,
		ctx:    tabCtx,
		logger: logger,
		cfg:    cfg,
		focus:  make(chan string, focusBacklog),
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}
	s.page = NewPage(tabCtx, cdpEvaluator{}, logger)
	chromedp.ListenTarget(tabCtx, s.bindingListener)
	go s.deliverFocus(tabCtx)

	if err := chromedp.Run(tabCtx, s.setupActions()...); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to set up browser session: %w", err)
	}
	logger.Info("Browser session ready.", zap.Bool("headless", cfg.Headless), zap.Bool("remote", cfg.RemoteURL != ""))
	return s, nil
}

func (s *Session) setupActions() []chromedp.Action {
	actions := []chromedp.Action{
		runtime.Enable(),
		runtime.AddBinding(focusBinding),
		chromedp.ActionFunc(func(c context.Context) error {
			scriptID, err := page.AddScriptToEvaluateOnNewDocument(runtimeScript).Do(c)
			if err != nil {
				return fmt.Errorf("could not inject runtime persistently: %w", err)
			}
			s.logger.Debug("Injected runtime.", zap.String("scriptID", string(scriptID)))
			return nil
		}),
	}
	if w, h := s.cfg.Viewport["width"], s.cfg.Viewport["height"]; w > 0 && h > 0 {
		actions = append(actions, emulation.SetDeviceMetricsOverride(int64(w), int64(h), 1, false))
	}
	return actions
}

// bindingListener runs on chromedp's event goroutine, which must not block
// on CDP calls, so focus reports are handed to deliverFocus.
func (s *Session) bindingListener(ev interface{}) {
	binding, ok := ev.(*runtime.EventBindingCalled)
	if !ok || binding.Name != focusBinding {
		return
	}
	select {
	case s.focus <- binding.Payload:
	default:
		s.logger.Debug("Dropping focus report, backlog full.")
	}
}

// deliverFocus passes focus reports to the page in arrival order.
func (s *Session) deliverFocus(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.focus:
			s.page.handleFocus(payload)
		}
	}
}

func (s *Session) ID() string { return s.id }

// Page returns the tab's document.
func (s *Session) Page() *Page { return s.page }

// Navigate loads url and waits for the body. The runtime is evaluated again
// afterwards in case the document was created before injection took effect.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL.", zap.String("url", url))
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(runtimeScript, nil),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// WaitForFocus blocks until the page reports a focus-in or ctx ends.
func (s *Session) WaitForFocus(ctx context.Context) (dom.Element, error) {
	ch := make(chan dom.Element, 1)
	unsubscribe := s.page.OnFocusIn(func(el dom.Element) {
		select {
		case ch <- el:
		default:
		}
	})
	defer unsubscribe()

	select {
	case el := <-ch:
		return el, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the tab and, for launched browsers, the browser process.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(s.ctx, closeTimeout)
	defer cancel()
	if err := chromedp.Cancel(closeCtx); err != nil {
		s.logger.Debug("Graceful browser close failed.", zap.Error(err))
	}
	s.cancel()
	s.logger.Info("Browser session closed.")
	return nil
}
