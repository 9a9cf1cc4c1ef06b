package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the gcircle command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gcircle",
		Short: "Manage ledger-anchored rotating savings circles",

		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCreateCmd(),
		newAddMemberCmd(),
		newContributeCmd(),
		newInspectCmd(),
		newHashCmd(),
		newVerifyHistoryCmd(),
		newServeCmd(),
	)

	return root
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// newLogger builds the command's text logger on its error stream.
func newLogger(cmd *cobra.Command, level string) (*slog.Logger, error) {
	if level == "" {
		var err error
		level, err = cmd.Flags().GetString("log-level")
		if err != nil {
			return nil, err
		}
	}
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: l})), nil
}

// readArg returns the argument, or the trimmed contents of stdin if the argument is "-".
func readArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
