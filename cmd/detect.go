// File: cmd/detect.go
package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/engine"
	"github.com/xkilldash9x/scriptfill/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Output formats.
const (
	formatJSON  = "json"
	formatTable = "table"
)

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatTable:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want json or table)", format)
	}
}

func newDetectCmd() *cobra.Command {
	var (
		format      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "detect <file|url>...",
		Short: "Score the input candidates of pages and show which one would be filled",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			opts, err := engine.OptionsFromConfig(cfg.Detection())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			reports := make([]schemas.DetectionReport, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for i, input := range args {
				g.Go(func() error {
					t, err := openTarget(ctx, cfg, input, logger)
					if err != nil {
						return err
					}
					defer t.Close()

					r := engine.New(t.doc, opts, logger).Report()
					r.Source = input
					reports[i] = r
					logger.Debug("Detection finished",
						zap.String("source", input),
						zap.Int("candidates", len(r.Candidates)),
						zap.Int("selected", r.Selected))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == formatJSON {
				return writeJSON(out, reports)
			}
			return writeReportTable(out, reports)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (json, table)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "number of inputs processed at once")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeReportTable(w io.Writer, reports []schemas.DetectionReport) error {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (viewport %gx%g)\n", r.Source, r.Viewport.Width, r.Viewport.Height)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\t#\tSCORE\tTAG\tREASON\tVISIBLE\tLOCATOR")
		for j, c := range r.Candidates {
			mark := ""
			if j == r.Selected {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%t\t%s\n",
				mark, j, strconv.FormatFloat(c.Score, 'f', 1, 64), c.Tag, c.Reason, c.Visible, c.Locator)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		switch {
		case r.Selected < 0 && r.Fallback != "":
			fmt.Fprintf(w, "no candidate, falling back to %s\n", r.Fallback)
		case r.Selected < 0:
			fmt.Fprintln(w, "no candidate")
		case r.Tied:
			fmt.Fprintln(w, "selection tied, first in document order wins")
		}
		if len(r.Rejected) > 0 {
			reasons := make([]string, 0, len(r.Rejected))
			for _, rej := range r.Rejected {
				reasons = append(reasons, rej.Reason)
			}
			fmt.Fprintf(w, "rejected %d: %s\n", len(r.Rejected), strings.Join(reasons, ", "))
		}
	}
	return nil
}
