package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jpfielding/dicomgo/pkg/logging"
	"github.com/spf13/cobra"
)

// NewRoot builds the dicomctl command tree: dump, echo-scu, echo-scp, version.
func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	root := &cobra.Command{
		Use:   "dicomctl",
		Short: "inspect DICOM files and exercise the Verification (C-ECHO) DIMSE service",
		Long:  "dicomctl dumps Part-10 files and runs a minimal C-ECHO SCU/SCP for association testing",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
				level = slog.LevelInfo
			}
			logger := logging.Logger(os.Stdout, false, level)
			if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
				logger = logging.Logger(logging.RotatingFileWriter(logFile), false, level)
			}
			slog.SetDefault(logger)
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	root.AddCommand(
		NewVersionCmd(gitsha),
		NewDumpCmd(ctx),
		NewEchoSCUCmd(ctx),
		NewEchoSCPCmd(ctx),
	)
	pf := root.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "Write logs to this file (size-rotated) instead of stdout")
	return root
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(gitsha string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
}
