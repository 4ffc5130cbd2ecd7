package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/formats"
	"github.com/tobilg/caddyserver-soqlstudio-module/handlers"
	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
	"github.com/tobilg/caddyserver-soqlstudio-module/suggest"
)

const defaultPageSize = 10

// viewCmd creates the view subcommand
func (a *app) viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Filter, search, sort and page a JSON result set",
		Long: `Read a JSON array of row objects and print one page of it.

Filters use the same column:operator:value format as the HTTP API, for
example --filter "Industry:equals:Technology,Name:startsWith:Acme".
The --expr option takes a CEL predicate over the map variable row, for
example --expr "row.AnnualRevenue > 6000000.0".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.readRows(cmd)
			if err != nil {
				return err
			}
			req, err := viewRequestFromFlags(cmd)
			if err != nil {
				return err
			}

			resp, err := handlers.BuildView(rows, req, a.v.GetInt("view.page_size"), 0, handlers.ViewResponse{})
			if err != nil {
				return err
			}
			return a.printView(cmd.OutOrStdout(), resp)
		},
	}

	addInputFlag(cmd)
	addViewFlags(cmd)
	cmd.Flags().Int("page", 1, "Page number, 1-based")
	cmd.Flags().Int("page-size", defaultPageSize, "Rows per page")
	cmd.Flags().StringSlice("columns", nil, "Visible columns, in result order")
	a.bind("view.page_size", cmd.Flags().Lookup("page-size"))

	return cmd
}

// exportCmd creates the export subcommand
func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a JSON result set",
		Long: `Read a JSON array of row objects, apply the filter, search and sort
options, and write every remaining row in the chosen format.

Formats: csv, json, xlsx-compatible-csv (alias excel), xlsx, parquet, arrow.
Compression: none, gzip, zstd, xz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formats.ParseFormat(a.v.GetString("export.format"))
			if err != nil {
				return err
			}
			compress, _ := cmd.Flags().GetString("compress")
			compression, err := formats.ParseCompression(compress)
			if err != nil {
				return err
			}

			rows, err := a.readRows(cmd)
			if err != nil {
				return err
			}
			req, err := viewRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			filtered, err := handlers.FilteredRows(rows, req)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := formats.EncodeCompressed(&buf, filtered, format, compression); err != nil {
				return fmt.Errorf("failed to encode export: %w", err)
			}

			target, _ := cmd.Flags().GetString("file")
			if target == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if target == "" {
				target = formats.Filename(format, compression, time.Now())
			}
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			a.logger.Info("Exported result set",
				zap.String("format", string(format)),
				zap.Int("rows", len(filtered)),
				zap.String("file", target),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d rows to %s\n", len(filtered), target)
			return nil
		},
	}

	addInputFlag(cmd)
	addViewFlags(cmd)
	cmd.Flags().StringP("format", "f", string(formats.FormatCSV), "Export format")
	cmd.Flags().String("compress", "none", "Compression: none, gzip, zstd or xz")
	cmd.Flags().String("file", "", "Output file, or - for stdout (default: soql-results-<date>.<ext>)")
	a.bind("export.format", cmd.Flags().Lookup("format"))

	return cmd
}

// suggestCmd creates the suggest subcommand
func (a *app) suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest [text]",
		Short: "List SOQL templates containing the text",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			matches := suggest.NewMatcher(limit).Match(strings.Join(args, " "))

			if a.output() == outputJSON {
				return writeIndentedJSON(cmd.OutOrStdout(), matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions found.")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", suggest.DefaultLimit, "Maximum number of suggestions")
	return cmd
}

func addInputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "-", "JSON rows file, or - for stdin")
}

func addViewFlags(cmd *cobra.Command) {
	cmd.Flags().String("filter", "", "Filter conditions as column:operator:value, comma separated")
	cmd.Flags().String("logic", "", "Combine filter conditions with AND or OR")
	cmd.Flags().String("search", "", "Keep rows with any value containing this text")
	cmd.Flags().String("expr", "", "CEL expression every kept row must satisfy")
	cmd.Flags().String("sort", "", "Sort as column:asc or column:desc")
}

// viewRequestFromFlags collects the view options of cmd. Flags the command
// does not define are left at their zero value.
func viewRequestFromFlags(cmd *cobra.Command) (handlers.ViewRequest, error) {
	var req handlers.ViewRequest
	flags := cmd.Flags()

	filter, _ := flags.GetString("filter")
	conditions, err := handlers.ParseFilters(filter)
	if err != nil {
		return req, err
	}
	sortFlag, _ := flags.GetString("sort")
	sortSpec, err := handlers.ParseSort(sortFlag)
	if err != nil {
		return req, err
	}

	req.Conditions = conditions
	req.Sort = sortSpec
	req.Logic, _ = flags.GetString("logic")
	req.Search, _ = flags.GetString("search")
	req.Expression, _ = flags.GetString("expr")
	if flags.Lookup("page") != nil {
		req.Page, _ = flags.GetInt("page")
	}
	if flags.Lookup("columns") != nil {
		req.Columns, _ = flags.GetStringSlice("columns")
	}
	return req, nil
}

// readRows decodes the rows named by the input flag.
func (a *app) readRows(cmd *cobra.Command) ([]resultset.Row, error) {
	input, _ := cmd.Flags().GetString("input")

	var r io.Reader = cmd.InOrStdin()
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	rows, err := resultset.DecodeRows(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	a.logger.Debug("Decoded rows", zap.Int("rows", len(rows)))
	return rows, nil
}

func (a *app) printView(w io.Writer, resp handlers.ViewResponse) error {
	if a.output() == outputJSON {
		return writeIndentedJSON(w, resp)
	}

	if len(resp.Data) == 0 {
		fmt.Fprintln(w, "No rows found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(resp.Columns, "\t"))
		dashes := make([]string, len(resp.Columns))
		for i, c := range resp.Columns {
			dashes[i] = strings.Repeat("-", len(c))
		}
		fmt.Fprintln(tw, strings.Join(dashes, "\t"))
		for _, row := range resp.Data {
			cells := make([]string, len(resp.Columns))
			for i, c := range resp.Columns {
				cells[i] = row.Value(c).Text()
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	p := resp.Pagination
	fmt.Fprintf(w, "\nPage %d of %d (%d results)\n", p.Page, max(p.TotalPages, 1), p.TotalResults)
	return nil
}
