package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/ranking/internal/cli/api"
	"github.com/zfogg/sidechain/ranking/internal/cli/client"
	"github.com/zfogg/sidechain/ranking/internal/cli/config"
	"github.com/zfogg/sidechain/ranking/internal/cli/logger"
	"github.com/zfogg/sidechain/ranking/internal/cli/output"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
	asUser     string
	baseURL    string
)

var rootCmd = &cobra.Command{
	Use:   "trendctl",
	Short: "trendctl - operate the Sidechain ranking service",
	Long: `trendctl queries the Sidechain ranking service: trending hashtags,
posts and users, trend velocity, cached feeds, and the operator endpoints
that refresh and invalidate the trending cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		logger.Init(verbose)

		if !output.ValidateOutputFormat(outputFmt) {
			return fmt.Errorf("invalid --output %q: use text, json or table", outputFmt)
		}
		config.Set("output.format", outputFmt)
		if asUser != "" {
			config.Set("api.user_id", asUser)
		}
		if baseURL != "" {
			config.Set("api.base_url", baseURL)
		}
		client.Init()
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		switch {
		case api.IsDegraded(err):
			output.PrintError("%v", err)
			output.PrintWarning("the ranking service cannot reach its engagement store")
		case api.IsRateLimited(err):
			output.PrintError("%v", err)
			output.PrintWarning("rate limited, retry shortly")
		default:
			output.PrintError("%v", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/sidechain/trendctl/config.toml)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "text", "Output format: text, json, table")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "User ID that mutations act as (overrides api.user_id)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "api", "", "Ranking service base URL (overrides api.base_url)")

	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
