package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/ranking/internal/cli/api"
	"github.com/zfogg/sidechain/ranking/internal/cli/output"
)

var (
	trendLimit     int
	trendTimeframe int
	trendUser      string
	velocityHours  int
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Trending lists and trend velocity",
}

var trendingHashtagsCmd = &cobra.Command{
	Use:   "hashtags",
	Short: "Show trending hashtags",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetTrendingHashtags(api.ListParams{Limit: trendLimit, Timeframe: trendTimeframe})
		if err != nil {
			return fmt.Errorf("failed to fetch trending hashtags: %w", err)
		}
		rows := make([][]string, 0, len(res.Items))
		for _, h := range res.Items {
			rows = append(rows, []string{strconv.Itoa(h.Rank), "#" + h.Name, score(h.Score), strconv.Itoa(h.RecentPosts), strconv.Itoa(h.EngagementSum)})
		}
		return output.PrintList(res, []string{"RANK", "HASHTAG", "SCORE", "POSTS", "ENGAGEMENT"}, rows, footer(res.Cached, res.Degraded))
	},
}

var trendingPostsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Show trending posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetTrendingPosts(api.ListParams{Limit: trendLimit, Timeframe: trendTimeframe})
		if err != nil {
			return fmt.Errorf("failed to fetch trending posts: %w", err)
		}
		return output.PrintList(res, postHeaders, postRows(res.Items), footer(res.Cached, res.Degraded))
	},
}

var trendingUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Show trending users",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetTrendingUsers(api.ListParams{Limit: trendLimit, Timeframe: trendTimeframe})
		if err != nil {
			return fmt.Errorf("failed to fetch trending users: %w", err)
		}
		rows := make([][]string, 0, len(res.Items))
		for _, u := range res.Items {
			rows = append(rows, []string{strconv.Itoa(u.Rank), "@" + u.Username, score(u.Score), u.ID})
		}
		return output.PrintList(res, []string{"RANK", "USER", "SCORE", "ID"}, rows, footer(res.Cached, res.Degraded))
	},
}

var trendingPersonalizedCmd = &cobra.Command{
	Use:   "personalized",
	Short: "Show trending posts boosted by who a user follows",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetPersonalizedTrending(trendUser, trendLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch personalized trending: %w", err)
		}
		return output.PrintList(res, postHeaders, postRows(res.Items), footer(res.Cached, res.Degraded))
	},
}

var trendingVelocityCmd = &cobra.Command{
	Use:   "velocity <hashtag|post|user> <id>",
	Short: "Show how fast an entity's activity is changing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := api.GetTrendVelocity(args[0], args[1], velocityHours)
		if err != nil {
			return fmt.Errorf("failed to fetch trend velocity: %w", err)
		}
		buckets := make([]string, len(v.Buckets))
		for i, b := range v.Buckets {
			buckets[i] = strconv.Itoa(b)
		}
		return output.PrintRecord(v, [][2]string{
			{"entity", v.EntityType + " " + v.EntityID},
			{"hours", strconv.Itoa(v.Hours)},
			{"velocity", fmt.Sprintf("%.3f", v.Velocity)},
			{"trend", v.Interpretation},
			{"growth", fmt.Sprintf("%.1f%%", v.GrowthPercent)},
			{"score", score(v.Score)},
			{"buckets", strings.Join(buckets, " ")},
			{"cached", strconv.FormatBool(v.Cached)},
		})
	},
}

var trendingRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the warm trending lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := api.RefreshTrending()
		if err != nil {
			return fmt.Errorf("failed to refresh trending: %w", err)
		}
		output.PrintSuccess("Trending refreshed at %s", at)
		return nil
	},
}

var trendingStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show trending cache state",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := api.GetTrendingStats()
		if err != nil {
			return fmt.Errorf("failed to fetch trending stats: %w", err)
		}
		last := "never"
		if stats.LastUpdated != nil {
			last = stats.LastUpdated.Format("2006-01-02 15:04:05 MST")
		}
		return output.PrintRecord(stats, [][2]string{
			{"backend", stats.Backend},
			{"last updated", last},
			{"warm hashtags", strconv.FormatBool(stats.Warm["hashtags"])},
			{"warm posts", strconv.FormatBool(stats.Warm["posts"])},
			{"warm users", strconv.FormatBool(stats.Warm["users"])},
			{"warm set", fmt.Sprintf("limit %d, %dh", stats.WarmLimit, stats.Timeframe)},
		})
	},
}

var postHeaders = []string{"RANK", "POST", "AUTHOR", "SCORE", "LIKES", "COMMENTS", "REPOSTS", "TAGS"}

func postRows(items []api.TrendingPost) [][]string {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		author := "@" + p.Author.Username
		if p.Followed {
			author += " *"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Rank), p.ID, author, score(p.Score),
			strconv.Itoa(p.Likes), strconv.Itoa(p.Comments), strconv.Itoa(p.Reposts),
			strings.Join(p.Hashtags, ","),
		})
	}
	return rows
}

func score(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}

func footer(cached, degraded bool) string {
	switch {
	case degraded:
		return "(stale copy: the engagement store is unavailable)"
	case cached:
		return "(cached)"
	}
	return ""
}

func init() {
	for _, c := range []*cobra.Command{trendingHashtagsCmd, trendingPostsCmd, trendingUsersCmd} {
		c.Flags().IntVarP(&trendLimit, "limit", "n", 0, "Number of results (1-100, default 20)")
		c.Flags().IntVarP(&trendTimeframe, "timeframe", "t", 0, "Window in hours (1-168, default 24)")
	}
	trendingPersonalizedCmd.Flags().IntVarP(&trendLimit, "limit", "n", 0, "Number of results (1-100, default 20)")
	trendingPersonalizedCmd.Flags().StringVar(&trendUser, "user", "", "User to personalize for (default: the acting user)")
	trendingVelocityCmd.Flags().IntVar(&velocityHours, "hours", 0, "Hours of history (1-168, default 24)")

	trendingCmd.AddCommand(trendingHashtagsCmd)
	trendingCmd.AddCommand(trendingPostsCmd)
	trendingCmd.AddCommand(trendingUsersCmd)
	trendingCmd.AddCommand(trendingPersonalizedCmd)
	trendingCmd.AddCommand(trendingVelocityCmd)
	trendingCmd.AddCommand(trendingRefreshCmd)
	trendingCmd.AddCommand(trendingStatsCmd)
}
