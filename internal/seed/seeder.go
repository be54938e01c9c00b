package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/social"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Plan sizes a seeding run
type Plan struct {
	Users    int
	Posts    int
	Follows  int
	Likes    int
	Comments int
	Reposts  int
}

// DevPlan produces enough activity for every trending list to clear its thresholds
func DevPlan() Plan {
	return Plan{Users: 200, Posts: 1000, Follows: 1500, Likes: 8000, Comments: 2000, Reposts: 1000}
}

// TestPlan is a small dataset for end-to-end checks
func TestPlan() Plan {
	return Plan{Users: 5, Posts: 10, Follows: 8, Likes: 30, Comments: 10, Reposts: 5}
}

// Summary counts what a seeding run actually changed
type Summary struct {
	Users    int
	Posts    int
	Follows  int
	Likes    int
	Comments int
	Reposts  int
}

var hashtagNames = []string{
	"house", "techno", "dubstep", "trance", "drumandbass", "hiphop", "trap",
	"futurebass", "deephouse", "techhouse", "minimal", "loops", "beats",
	"production", "ableton", "flstudio", "original", "collab", "newmusic",
}

var commentTemplates = []string{
	"This is fire!",
	"Love the vibe on this one",
	"Perfect for my next track",
	"Great work!",
	"Can I get stems?",
	"This hits different",
	"Would love to collab",
}

// Seeder writes generated users, posts and engagement through a content writer
type Seeder struct {
	writer store.ContentWriter
	faker  *gofakeit.Faker
}

// NewSeeder creates a seeder. The same seed yields the same content.
func NewSeeder(w store.ContentWriter, seed uint64) *Seeder {
	return &Seeder{writer: w, faker: gofakeit.New(seed)}
}

// Seed runs plan. Duplicate engagement (a second like by the same user) is
// skipped rather than counted.
func (s *Seeder) Seed(ctx context.Context, plan Plan) (Summary, error) {
	var sum Summary

	logger.Log.Info("Creating users...", zap.Int("count", plan.Users))
	users := make([]string, 0, plan.Users)
	for i := 0; i < plan.Users; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), i)
		user, err := s.writer.CreateUser(ctx, username, s.faker.Name())
		if err != nil {
			return sum, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user.ID)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	logger.Log.Info("Creating posts...", zap.Int("count", plan.Posts))
	posts := make([]string, 0, plan.Posts)
	for i := 0; i < plan.Posts; i++ {
		content := s.postContent()
		post, err := s.writer.CreatePost(ctx, s.pick(users), content, social.ExtractHashtags(content))
		if err != nil {
			return sum, fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post.ID)
	}
	sum.Posts = len(posts)

	logger.Log.Info("Creating follows...", zap.Int("count", plan.Follows))
	if len(users) > 1 {
		for i := 0; i < plan.Follows; i++ {
			follower, following := s.pick(users), s.pick(users)
			if follower == following {
				continue
			}
			changed, err := s.writer.Follow(ctx, follower, following)
			if err != nil {
				return sum, fmt.Errorf("failed to create follow: %w", err)
			}
			if changed {
				sum.Follows++
			}
		}
	}

	if len(posts) == 0 {
		return sum, nil
	}

	logger.Log.Info("Creating engagement...",
		zap.Int("likes", plan.Likes),
		zap.Int("comments", plan.Comments),
		zap.Int("reposts", plan.Reposts))
	for i := 0; i < plan.Likes; i++ {
		changed, err := s.writer.Like(ctx, s.pick(users), s.pickWeighted(posts))
		if err != nil {
			return sum, fmt.Errorf("failed to create like: %w", err)
		}
		if changed {
			sum.Likes++
		}
	}
	for i := 0; i < plan.Comments; i++ {
		body := s.faker.HipsterSentence()
		if s.faker.Bool() {
			body = s.faker.RandomString(commentTemplates)
		}
		if err := s.writer.Comment(ctx, s.pick(users), s.pickWeighted(posts), body); err != nil {
			return sum, fmt.Errorf("failed to create comment: %w", err)
		}
		sum.Comments++
	}
	for i := 0; i < plan.Reposts; i++ {
		changed, err := s.writer.Repost(ctx, s.pick(users), s.pickWeighted(posts))
		if err != nil {
			return sum, fmt.Errorf("failed to create repost: %w", err)
		}
		if changed {
			sum.Reposts++
		}
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", sum.Users),
		zap.Int("posts", sum.Posts),
		zap.Int("follows", sum.Follows),
		zap.Int("likes", sum.Likes),
		zap.Int("comments", sum.Comments),
		zap.Int("reposts", sum.Reposts))
	return sum, nil
}

// postContent writes a sentence followed by one to three hashtags
func (s *Seeder) postContent() string {
	var b strings.Builder
	b.WriteString(s.faker.HipsterSentence())
	used := make(map[string]bool)
	for i := s.faker.IntRange(1, 3); i > 0; i-- {
		tag := s.faker.RandomString(hashtagNames)
		if used[tag] {
			continue
		}
		used[tag] = true
		b.WriteString(" #")
		b.WriteString(tag)
	}
	return b.String()
}

func (s *Seeder) pick(ids []string) string {
	return ids[s.faker.IntRange(0, len(ids)-1)]
}

// pickWeighted favors the front of ids so a few posts collect most of the
// engagement, the way real activity clusters
func (s *Seeder) pickWeighted(ids []string) string {
	a, b := s.faker.IntRange(0, len(ids)-1), s.faker.IntRange(0, len(ids)-1)
	return ids[min(a, b)]
}

// cleanTables lists seeded tables, dependents first
var cleanTables = []string{
	"reposts", "comments", "likes", "post_hashtags", "hashtags", "posts", "follows", "users",
}

// Clean removes all content from the database (use with caution!)
func Clean(ctx context.Context, db *gorm.DB) error {
	for _, table := range cleanTables {
		if err := db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
