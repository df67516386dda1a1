package main

import (
	"github.com/spf13/cobra"
)

const appVersion = "0.1.0"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "classbook",
		Short:         "Student roster and attendance register for a small school",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipStore(cmd) {
				return nil
			}
			return a.open(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to read before the environment (default .env)")
	pf.StringVar(&a.driver, "driver", "", "store driver: memory, badger, redis or postgres (overrides STORE_DRIVER)")
	pf.StringVar(&a.dataDir, "data-dir", "", "badger data directory (overrides STORE_BADGER_DIR)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newStudentCmd(a),
		newAttendanceCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

// skipStore reports commands that never touch saved data.
func skipStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}
