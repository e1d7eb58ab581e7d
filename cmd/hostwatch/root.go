package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	stateDir   string
	rootTest   bool
)

var rootCmd = &cobra.Command{
	Use:   "hostwatch",
	Short: "Host resource and network monitor with chat alerts and self-recovery",
	Long: `hostwatch samples CPU, memory, swap and disk usage and the reachability of a
network target, and alerts Feishu, Slack and Mattermost webhooks when a
threshold stays breached for several consecutive checks. Sustained breaches
can trigger recovery commands, followed by a second alert with the result.

Run it from cron ("hostwatch resources", "hostwatch network") or as a
long-running scheduler ("hostwatch daemon").`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// bare --test keeps the old script invocation working
		if rootTest {
			return runResources(cmd, true)
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default /etc/hostwatch/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory override")
	rootCmd.Flags().BoolVar(&rootTest, "test", false, "same as 'resources --test'")
}
