// File: cmd/fill.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/config"
	"github.com/xkilldash9x/scriptfill/internal/engine"
	"github.com/xkilldash9x/scriptfill/internal/insert"
	"github.com/xkilldash9x/scriptfill/internal/observability"
)

type fillOptions struct {
	url       string
	file      string
	scriptID  string
	text      string
	mode      string
	waitFocus time.Duration
	output    string
}

func newFillCmd(d *deps) *cobra.Command {
	var o fillOptions
	cmd := &cobra.Command{
		Use:   "fill (--url URL | --file PAGE.html) (--script ID | --text TEXT)",
		Short: "Insert a script into the chat composer of a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (o.url == "") == (o.file == "") {
				return errors.New("exactly one of --url or --file is required")
			}
			if (o.scriptID == "") == (o.text == "") {
				return errors.New("exactly one of --script or --text is required")
			}
			if o.output != "" && o.file == "" {
				return errors.New("--output is only supported with --file")
			}
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return runFill(cmd, d, cfg, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.url, "url", "", "page to open in the browser")
	f.StringVar(&o.file, "file", "", "local HTML page to fill in memory")
	f.StringVarP(&o.scriptID, "script", "s", "", "ID of the stored script to insert")
	f.StringVarP(&o.text, "text", "t", "", "text to insert")
	f.StringVarP(&o.mode, "mode", "m", "", "insert mode (replace, cursor); defaults to detection.insert_mode")
	f.DurationVar(&o.waitFocus, "wait-focus", 0, "with --url, wait this long for a field to be focused first")
	f.StringVarP(&o.output, "output", "o", "", "with --file, write the filled page here")
	return cmd
}

func runFill(cmd *cobra.Command, d *deps, cfg config.Interface, o fillOptions) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	text, err := resolveText(ctx, d, cfg, o, logger)
	if err != nil {
		return err
	}
	opts, err := engine.OptionsFromConfig(cfg.Detection())
	if err != nil {
		return err
	}
	if o.mode != "" {
		if opts.InsertMode, err = insert.ParseMode(o.mode); err != nil {
			return err
		}
	}

	input := o.url
	if input == "" {
		input = o.file
	}
	t, err := openTarget(ctx, cfg, input, logger)
	if err != nil {
		return err
	}
	defer t.Close()

	eng := engine.New(t.doc, opts, logger)
	eng.Start()
	defer eng.Close()

	if t.session != nil && o.waitFocus > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Waiting up to %s for a field to be focused...\n", o.waitFocus)
		waitCtx, cancel := context.WithTimeout(ctx, o.waitFocus)
		_, err := t.session.WaitForFocus(waitCtx)
		cancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.Info("No focus reported, detecting without one.")
		case err != nil:
			return err
		}
	}

	res := eng.InsertBest(ctx, text)
	if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	if o.output != "" && res.Status == schemas.StatusFilled {
		if err := writePage(o.output, t); err != nil {
			return err
		}
	}
	if res.Status != schemas.StatusFilled {
		return fmt.Errorf("fill %s", strings.ToLower(strings.ReplaceAll(string(res.Status), "_", " ")))
	}
	return nil
}

// resolveText returns the literal text or loads the referenced script.
func resolveText(ctx context.Context, d *deps, cfg config.Interface, o fillOptions, logger *zap.Logger) (string, error) {
	if o.text != "" {
		return o.text, nil
	}
	repo, release, err := d.openRepo(ctx, cfg, logger)
	if err != nil {
		return "", fmt.Errorf("failed to open script store: %w", err)
	}
	defer release()
	s, err := repo.Get(ctx, o.scriptID)
	if err != nil {
		return "", err
	}
	return s.Content, nil
}

func writePage(path string, t *target) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := t.static.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render page: %w", err)
	}
	return f.Close()
}
