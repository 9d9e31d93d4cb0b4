package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"zen-records/app"
	"zen-records/config"
	"zen-records/domain"
	"zen-records/notice"
	"zen-records/report"
)

const (
	appAgenda = "agenda"
	appClinic = "clinic"
)

type cli struct {
	appName string
	envFile string
	outDir  string
	rt      *app.Runtime
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: log.New()}
	c.logger.SetOutput(io.Discard)

	root := &cobra.Command{
		Use:           "zenctl",
		Short:         "Back up, restore and report on the agenda and clinic records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.appName != appAgenda && c.appName != appClinic {
				return fmt.Errorf("--app must be %q or %q", appAgenda, appClinic)
			}
			var files []string
			if c.envFile != "" {
				files = append(files, c.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			if cfg.Debug {
				c.logger.SetOutput(cmd.ErrOrStderr())
				c.logger.SetLevel(log.DebugLevel)
			}
			c.rt, err = app.Open(cmd.Context(), cfg, c.logger)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.rt == nil {
				return nil
			}
			return c.rt.Close()
		},
	}
	root.PersistentFlags().StringVar(&c.appName, "app", appAgenda, "app to operate on: agenda or clinic")
	root.PersistentFlags().StringVar(&c.envFile, "env", "", "env file to load instead of .env")
	root.PersistentFlags().StringVarP(&c.outDir, "out", "o", ".", "directory for written files")

	root.AddCommand(c.exportCmd(), c.importCmd(), c.reportCmd(), c.resetCmd(), c.workbookCmd(), c.eventsCmd())
	return root
}

func (c *cli) notices() *notice.Board {
	if c.appName == appClinic {
		return c.rt.ClinicNotices
	}
	return c.rt.AgendaNotices
}

// finish prints the latest notice, if any, and passes err through.
func (c *cli) finish(cmd *cobra.Command, err error) error {
	if n := c.notices().Take(); n != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Level, n.Text)
	}
	return err
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of all records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var (
				art report.Artifact
				err error
			)
			if c.appName == appClinic {
				art, err = c.rt.Clinic.ExportBackup(ctx)
			} else {
				art, err = c.rt.Agenda.ExportBackup(ctx)
			}
			if err != nil {
				return c.finish(cmd, err)
			}
			return c.finish(cmd, c.write(cmd, art))
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge or replace records from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseImportMode(mode)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if c.appName == appClinic {
				_, err = c.rt.Clinic.Import(ctx, data, m)
			} else {
				_, err = c.rt.Agenda.Import(ctx, data, m)
			}
			return c.finish(cmd, err)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(domain.ImportMerge), "merge or replace")
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:       "report <daily|weekly|full>",
		Short:     "Render a report as PDF or text",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(report.Daily), string(report.Weekly), string(report.Full)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := report.ParseKind(args[0])
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var art report.Artifact
			if c.appName == appClinic {
				art, err = c.rt.Clinic.ExportReport(ctx, kind, f)
			} else {
				art, err = c.rt.Agenda.ExportReport(ctx, kind, f)
			}
			if err != nil {
				return c.finish(cmd, err)
			}
			return c.finish(cmd, c.write(cmd, art))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(report.FormatPDF), "pdf or txt")
	return cmd
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Back up and then clear all agenda data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.appName != appAgenda {
				return fmt.Errorf("reset is only available for the agenda")
			}
			art, err := c.rt.Agenda.Reset(cmd.Context())
			if err != nil {
				return c.finish(cmd, err)
			}
			return c.finish(cmd, c.write(cmd, art))
		},
	}
}

func (c *cli) workbookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workbook",
		Short: "Export clinic patients and appointments as a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.appName != appClinic {
				return fmt.Errorf("workbook is only available for the clinic")
			}
			art, err := c.rt.Clinic.Workbook(cmd.Context())
			if err != nil {
				return c.finish(cmd, err)
			}
			return c.finish(cmd, c.write(cmd, art))
		},
	}
}

func (c *cli) write(cmd *cobra.Command, art report.Artifact) error {
	path, err := writeArtifact(cmd.Context(), c.outDir, art)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// writeArtifact writes art into dir through a temp file renamed into place,
// so an interrupted write never leaves a truncated file behind.
func writeArtifact(ctx context.Context, dir string, art report.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	final := filepath.Join(dir, filepath.Base(art.Name))
	tmp, err := os.CreateTemp(dir, ".zenctl-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(art.Data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", err
	}
	return final, nil
}
