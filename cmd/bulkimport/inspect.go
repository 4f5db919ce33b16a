package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"bulkimport/internal/config"
	"bulkimport/internal/parser/delimited"
	"bulkimport/internal/inspect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInspectCmd(cfgPath *string) *cobra.Command {
	var (
		input  string
		rows   int
		family string
		entity string
		table  string
		emit   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Sample the input and propose a descriptor",
		Long: "inspect reads the first rows of the configured input, prints per-column fill\n" +
			"statistics, and with --emit prints a starter pipeline whose descriptor maps\n" +
			"every header field into one family.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if input != "" {
				spec.Source.Kind = "file"
				spec.Source.File.Path = input
			}

			icfg := importerConfig(spec, nil, nil)
			d, err := delimited.ParseDelimiter(icfg.Delimiter)
			if err != nil {
				return err
			}

			src, err := openSourceFn(cmd.Context(), spec)
			if err != nil {
				return fmt.Errorf("source open: %w", err)
			}
			defer src.Close()

			res, err := inspect.Sample(cmd.Context(), src, inspect.Options{
				Delimiter:  d,
				HeaderRow:  icfg.HeaderRow,
				LazyQuotes: icfg.LazyQuotes,
				SampleRows: rows,
			})
			if err != nil {
				return err
			}

			if !emit {
				return printColumns(cmd.OutOrStdout(), res)
			}

			if table == "" {
				table = spec.Descriptor.Table
			}
			desc, err := res.Descriptor(table, family, entity)
			if err != nil {
				return err
			}
			spec.Descriptor = desc
			spec.DescriptorFile = ""
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(spec); err != nil {
				return fmt.Errorf("encode pipeline: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input file (overrides the configured source)")
	cmd.Flags().IntVar(&rows, "rows", inspect.DefaultSampleRows, "data rows to sample")
	cmd.Flags().StringVar(&family, "family", "cf", "family for the proposed columns")
	cmd.Flags().StringVar(&entity, "entity", "", "entity id field (default: first header field)")
	cmd.Flags().StringVar(&table, "table", "", "table for the proposed descriptor")
	cmd.Flags().BoolVar(&emit, "emit", false, "print a starter pipeline instead of column statistics")
	return cmd
}

func printColumns(w io.Writer, res inspect.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "sampled rows: %d, unparseable: %d\n", res.Rows, res.ParseErrors)
	fmt.Fprintln(tw, "POS\tNAME\tQUALIFIER\tFILLED\tSHORT\tMAX_WIDTH\tEXAMPLE")
	for _, c := range res.Columns {
		name := c.Name
		if c.Duplicate {
			name += " (duplicate, ignored)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%q\n",
			c.Position, name, c.Qualifier, c.Filled, c.Short, c.MaxWidth, c.Example)
	}
	return tw.Flush()
}
