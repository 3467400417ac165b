package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/excel"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load cards from a csv, json or xlsx file into --deck",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		l, d, err := a.target(ctx, cmd)
		if err != nil {
			return err
		}
		role, err := a.store.Role(ctx, l.ID, d.ID)
		if err != nil {
			return err
		}
		if !role.CanEdit() {
			return apperr.Invalid("learner %s can only view deck %q", l.Username, d.Name)
		}

		name, _ := cmd.Flags().GetString("format")
		if name == "" {
			name = args[0]
		}
		format, err := excel.ParseFormat(name)
		if err != nil {
			return err
		}
		modeName, _ := cmd.Flags().GetString("mode")
		mode, err := excel.ParseMode(modeName)
		if err != nil {
			return err
		}
		sheet, _ := cmd.Flags().GetString("sheet")

		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to open import file")
		}
		defer f.Close()

		res, err := a.importer.Import(ctx, d.ID, f, excel.ImportConfig{Format: format, Mode: mode, SheetName: sheet})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every card of --deck to stdout or --out",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		_, d, err := a.target(ctx, cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		name, _ := cmd.Flags().GetString("format")
		if name == "" {
			name = out
		}
		if name == "" {
			name = string(excel.FormatCSV)
		}
		format, err := excel.ParseFormat(name)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return errors.Wrap(err, "failed to create export file")
			}
			defer f.Close()
			w = f
		}
		n, err := a.importer.Export(ctx, d.ID, w, format)
		if err != nil {
			return err
		}
		a.log.Debug("Export written", "deck", d.Name, "count", n, "out", out)
		return nil
	}),
}

func init() {
	f := importCmd.Flags()
	f.String("format", "", "File format: csv, json or xlsx (default from the file name)")
	f.String("mode", "skip", "What to do with existing cards: skip, update or fail")
	f.String("sheet", "", "xlsx sheet to read (default: the first)")

	f = exportCmd.Flags()
	f.String("format", "", "File format: csv, json or xlsx (default from --out, else csv)")
	f.StringP("out", "o", "", "Output file (default: stdout)")
}
