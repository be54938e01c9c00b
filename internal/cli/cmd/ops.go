package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/ranking/internal/cli/api"
	"github.com/zfogg/sidechain/ranking/internal/cli/config"
	"github.com/zfogg/sidechain/ranking/internal/cli/output"
)

// Version is set at build time with -ldflags
var Version = "0.1.0"

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache administration",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <key-or-pattern>...",
	Short: "Delete cached entries by exact key or glob pattern (e.g. 'trending:posts:*')",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := api.InvalidateCache(args)
		if err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
		output.PrintSuccess("Deleted %d cached entries", deleted)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the ranking service and its dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		health, err := api.GetHealth()
		if health == nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		names := make([]string, 0, len(health.Checks))
		for name := range health.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := [][2]string{{"status", health.Status}}
		for _, name := range names {
			fields = append(fields, [2]string{name, health.Checks[name]})
		}
		if perr := output.PrintRecord(health, fields); perr != nil {
			return perr
		}
		return err
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage trendctl configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting such as api.base_url or api.user_id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config.Set(args[0], args[1])
		if err := config.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		output.PrintSuccess("Saved %s to %s", args[0], config.GetConfigFile())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := [][2]string{
			{"file", config.GetConfigFile()},
			{"api.base_url", config.GetString("api.base_url")},
			{"api.user_id", config.GetString("api.user_id")},
			{"api.timeout", config.Timeout().String()},
			{"log.file", config.GetString("log.file")},
		}
		raw := make(map[string]string, len(fields))
		for _, f := range fields {
			raw[f[0]] = f[1]
		}
		return output.PrintRecord(raw, fields)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show trendctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trendctl v" + Version)
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
