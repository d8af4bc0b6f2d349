package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dataops-ch/emrctl/flags"
	"github.com/dataops-ch/emrctl/log"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

var emrctlCmd = &cobra.Command{
	Use:   "emrctl",
	Short: "Emrctl provisions and tears down managed EMR clusters.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Init()
	},
}

func init() {
	emrctlCmd.AddCommand(applyCmd)
	emrctlCmd.AddCommand(destroyCmd)
	emrctlCmd.AddCommand(statusCmd)
	emrctlCmd.AddCommand(usersCmd)
	emrctlCmd.AddCommand(versionCmd)

	flags.Setup(emrctlCmd.PersistentFlags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Whatever goes wrong, the caller gets a structured failure payload on
	// stdout, never a bare crash.
	defer func() {
		if r := recover(); r != nil {
			reportFailure(fmt.Errorf("panic: %v", r), string(debug.Stack()))
			os.Exit(1)
		}
	}()

	emrctlCmd.SetOut(os.Stdout)
	if err := emrctlCmd.ExecuteContext(ctx); err != nil {
		reportFailure(err, "")
		os.Exit(1)
	}
}
