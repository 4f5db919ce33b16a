// Command bulkimport loads a delimited text file into a wide-column cell
// store: every data line becomes one row keyed by its entity id, and each
// configured column becomes a (family, qualifier) cell.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulkimport/internal/config"
	"bulkimport/internal/logging"
	"bulkimport/internal/storage"

	// register all backends with the storage factory.
	_ "bulkimport/internal/storage/all"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree; out and errOut replace stdout/stderr
// in tests.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "bulkimport",
		Short:         "Import CSV/TSV files into a wide-column cell store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "pipeline config path (YAML or JSON)")

	root.AddCommand(newRunCmd(&cfgPath), newValidateCmd(&cfgPath), newInspectCmd(&cfgPath), newKindsCmd())
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the import described by the pipeline config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := loadValid(cmd, *cfgPath, input)
			if err != nil {
				return err
			}

			_, closeLog, err := logging.Setup(spec.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			runID := uuid.NewString()
			flush, err := setupMetrics(spec, runID)
			if err != nil {
				return err
			}
			defer flush()

			sum, err := runStreamed(cmd.Context(), spec, runID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: imported=%d dropped=%d cells=%d written=%d in %s\n",
				sum.RunID, sum.Stats.Imported, sum.Stats.Dropped(), sum.Stats.Cells, sum.Written, sum.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input file (overrides source.file.path)")
	return cmd
}

func newValidateCmd(cfgPath *string) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline config and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := loadValid(cmd, *cfgPath, "")
			if err != nil {
				return err
			}
			if dump {
				// The dump inlines a descriptor_file so it loads on its own.
				spec.DescriptorFile = ""
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(spec); err != nil {
					return fmt.Errorf("dump config: %w", err)
				}
				return enc.Close()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", *cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print the effective configuration as YAML")
	return cmd
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the compiled-in storage kinds",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range storage.ListKinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}

// loadValid loads the pipeline, applies a non-empty input override, prints
// every issue to stderr, and fails when any issue is an error.
func loadValid(cmd *cobra.Command, path, input string) (config.Pipeline, error) {
	spec, err := config.Load(path)
	if err != nil {
		return config.Pipeline{}, err
	}
	if input != "" {
		spec.Source.File.Path = input
	}
	issues := config.ValidatePipeline(spec)
	for _, iss := range issues {
		fmt.Fprintln(cmd.ErrOrStderr(), iss.Error())
	}
	if err := issues.Err(); err != nil {
		return config.Pipeline{}, err
	}
	return spec, nil
}
