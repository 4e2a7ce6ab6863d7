// File: cmd/target.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/internal/browser"
	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
	"github.com/xkilldash9x/scriptfill/internal/browser/htmldom"
	"github.com/xkilldash9x/scriptfill/internal/config"
)

// target is a document opened for detection or filling. Exactly one of
// session and static is set.
type target struct {
	doc     dom.Document
	session *browser.Session
	static  *htmldom.Document
}

func (t *target) Close() {
	if t.session != nil {
		_ = t.session.Close()
	}
}

func isURL(input string) bool {
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(strings.ToLower(input), scheme) {
			return true
		}
	}
	return false
}

// openTarget loads input, a URL in a live browser tab or a local HTML file
// in the in-memory DOM.
func openTarget(ctx context.Context, cfg config.Interface, input string, logger *zap.Logger) (*target, error) {
	if isURL(input) {
		session, err := browser.NewSession(ctx, cfg.Browser(), logger)
		if err != nil {
			return nil, err
		}
		if err := session.Navigate(ctx, input); err != nil {
			_ = session.Close()
			return nil, err
		}
		return &target{doc: session.Page(), session: session}, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer f.Close()

	opts := []htmldom.Option{htmldom.WithLogger(logger)}
	vp := cfg.Browser().Viewport
	if w, h := vp["width"], vp["height"]; w > 0 && h > 0 {
		opts = append(opts, htmldom.WithViewport(float64(w), float64(h)))
	}
	doc, err := htmldom.Parse(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", input, err)
	}
	return &target{doc: doc, static: doc}, nil
}
