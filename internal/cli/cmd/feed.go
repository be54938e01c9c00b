package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/ranking/internal/cli/api"
	"github.com/zfogg/sidechain/ranking/internal/cli/output"
)

var feedLimit int

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Cached timeline and popular feeds",
}

var feedTimelineCmd = &cobra.Command{
	Use:   "timeline <user-id>",
	Short: "Show a user's timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetTimeline(args[0], feedLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch timeline: %w", err)
		}
		return output.PrintList(res, feedHeaders, feedRows(res.Items), footer(res.Cached, res.Degraded))
	},
}

var feedPopularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Show the most engaged posts of the past week",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetPopularPosts(feedLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch popular posts: %w", err)
		}
		return output.PrintList(res, feedHeaders, feedRows(res.Items), footer(res.Cached, res.Degraded))
	},
}

var feedHeaders = []string{"POST", "AUTHOR", "PUBLISHED", "LIKES", "COMMENTS", "REPOSTS", "TAGS"}

func feedRows(items []api.Post) [][]string {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		rows = append(rows, []string{
			p.ID, "@" + p.AuthorUsername, p.PublishedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(p.Likes), strconv.Itoa(p.Comments), strconv.Itoa(p.Reposts),
			strings.Join(p.Hashtags, ","),
		})
	}
	return rows
}

func init() {
	feedTimelineCmd.Flags().IntVarP(&feedLimit, "limit", "n", 0, "Number of posts (1-100, default 20)")
	feedPopularCmd.Flags().IntVarP(&feedLimit, "limit", "n", 0, "Number of posts (1-100, default 20)")

	feedCmd.AddCommand(feedTimelineCmd)
	feedCmd.AddCommand(feedPopularCmd)
}
