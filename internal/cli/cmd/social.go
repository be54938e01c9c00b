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
	displayName string
	postTags    []string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create, inspect and follow users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := api.CreateUser(args[0], displayName)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		output.PrintSuccess("Created @%s (%s)", user.Username, user.ID)
		return nil
	},
}

var userProfileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := api.GetUserProfile(args[0])
		if err != nil {
			if api.IsNotFound(err) {
				return fmt.Errorf("user %s not found", args[0])
			}
			return fmt.Errorf("failed to fetch profile: %w", err)
		}
		return output.PrintRecord(user, [][2]string{
			{"id", user.ID},
			{"username", "@" + user.Username},
			{"display name", user.DisplayName},
			{"posts", strconv.Itoa(user.PostCount)},
			{"followers", strconv.Itoa(user.FollowerCount)},
			{"following", strconv.Itoa(user.FollowingCount)},
		})
	},
}

var userFollowCmd = &cobra.Command{
	Use:   "follow <user-id>",
	Short: "Follow a user as the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportChange(api.FollowUser(args[0]))("Now following %s", args[0])
	},
}

var userUnfollowCmd = &cobra.Command{
	Use:   "unfollow <user-id>",
	Short: "Unfollow a user as the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportChange(api.UnfollowUser(args[0]))("Unfollowed %s", args[0])
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create posts and engage with them",
}

var postCreateCmd = &cobra.Command{
	Use:   "create <content>",
	Short: "Publish a post as the acting user; #hashtags in content are extracted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		post, err := api.CreatePost(strings.Join(args, " "), postTags)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		output.PrintSuccess("Posted %s with tags [%s]", post.ID, strings.Join(post.Hashtags, ", "))
		return nil
	},
}

var postShowCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Show a post with its engagement counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		post, err := api.GetPost(args[0])
		if err != nil {
			if api.IsNotFound(err) {
				return fmt.Errorf("post %s not found", args[0])
			}
			return fmt.Errorf("failed to fetch post: %w", err)
		}
		return output.PrintRecord(post, [][2]string{
			{"id", post.ID},
			{"author", "@" + post.AuthorUsername},
			{"content", post.Content},
			{"tags", strings.Join(post.Hashtags, ", ")},
			{"likes", strconv.Itoa(post.Likes)},
			{"comments", strconv.Itoa(post.Comments)},
			{"reposts", strconv.Itoa(post.Reposts)},
			{"published", post.PublishedAt.Format("2006-01-02 15:04:05 MST")},
		})
	},
}

var postLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportChange(api.LikePost(args[0]))("Liked %s", args[0])
	},
}

var postUnlikeCmd = &cobra.Command{
	Use:   "unlike <post-id>",
	Short: "Remove your like from a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportChange(api.UnlikePost(args[0]))("Unliked %s", args[0])
	},
}

var postRepostCmd = &cobra.Command{
	Use:   "repost <post-id>",
	Short: "Repost a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportChange(api.RepostPost(args[0]))("Reposted %s", args[0])
	},
}

var postCommentCmd = &cobra.Command{
	Use:   "comment <post-id> <body>",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.CommentOnPost(args[0], strings.Join(args[1:], " ")); err != nil {
			return fmt.Errorf("failed to comment: %w", err)
		}
		output.PrintSuccess("Commented on %s", args[0])
		return nil
	},
}

// reportChange prints msg when the mutation changed state, or a note that
// it was already in effect
func reportChange(changed bool, err error) func(msg string, args ...interface{}) error {
	return func(msg string, args ...interface{}) error {
		if err != nil {
			return err
		}
		if !changed {
			output.PrintInfo("Nothing to do: already in that state")
			return nil
		}
		output.PrintSuccess(msg, args...)
		return nil
	}
}

func init() {
	userCreateCmd.Flags().StringVar(&displayName, "display-name", "", "Display name (default: the username)")
	postCreateCmd.Flags().StringSliceVar(&postTags, "tag", nil, "Extra hashtag (repeatable)")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userProfileCmd)
	userCmd.AddCommand(userFollowCmd)
	userCmd.AddCommand(userUnfollowCmd)

	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postLikeCmd)
	postCmd.AddCommand(postUnlikeCmd)
	postCmd.AddCommand(postRepostCmd)
	postCmd.AddCommand(postCommentCmd)
}
