// Command xlbook writes .xlsx workbooks from YAML definitions.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logger = zerolog.Nop()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var level string

	root := &cobra.Command{
		Use:   "xlbook",
		Short: "Spreadsheet writer",
		Long: `Write Office Open XML workbooks (.xlsx).

Commands:
  build  Build a workbook from a YAML definition.
  demo   Write the demonstration workbook.

Environment (also read from .env):
  XLBOOK_LOG_LEVEL  default for --log-level`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			if level == "" {
				level = os.Getenv("XLBOOK_LOG_LEVEL")
			}
			if level == "" {
				level = "info"
			}
			lvl, err := zerolog.ParseLevel(strings.ToLower(level))
			if err != nil {
				return err
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
				Level(lvl).With().Timestamp().Logger()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newBuildCmd(), newDemoCmd())
	return root
}
