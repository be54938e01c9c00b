package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/models"
	"gorm.io/gorm"
)

const engagementSumExpr = "COALESCE(SUM(posts.like_count + posts.comment_count + posts.repost_count), 0)"

// GormStore implements Store on top of the relational content database
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// publicPosts scopes a query to visible, non-deleted posts
func (s *GormStore) publicPosts(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("posts.is_public = ?", true)
}

// CountRecentPostsForHashtag counts public posts tagged with the hashtag since the given time
func (s *GormStore) CountRecentPostsForHashtag(ctx context.Context, hashtagID string, since time.Time) (int, error) {
	var count int64
	err := s.publicPosts(ctx).
		Joins("JOIN post_hashtags ON post_hashtags.post_id = posts.id").
		Where("post_hashtags.hashtag_id = ? AND posts.created_at >= ?", hashtagID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count hashtag posts: %w", err)
	}
	return int(count), nil
}

// EngagementSumForHashtag sums likes, comments and reposts of the hashtag's recent posts
func (s *GormStore) EngagementSumForHashtag(ctx context.Context, hashtagID string, since time.Time) (int, error) {
	var sum int64
	err := s.publicPosts(ctx).
		Joins("JOIN post_hashtags ON post_hashtags.post_id = posts.id").
		Where("post_hashtags.hashtag_id = ? AND posts.created_at >= ?", hashtagID, since).
		Select(engagementSumExpr).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("sum hashtag engagement: %w", err)
	}
	return int(sum), nil
}

// PostEngagementSnapshot loads a post's counters, author and hashtags
func (s *GormStore) PostEngagementSnapshot(ctx context.Context, postID string) (PostSummary, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("id = ?", postID).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostSummary{}, ErrNotFound
	}
	if err != nil {
		return PostSummary{}, fmt.Errorf("load post: %w", err)
	}

	var tags []string
	err = s.db.WithContext(ctx).
		Table("hashtags").
		Joins("JOIN post_hashtags ON post_hashtags.hashtag_id = hashtags.id").
		Where("post_hashtags.post_id = ?", postID).
		Order("hashtags.name").
		Pluck("hashtags.name", &tags).Error
	if err != nil {
		return PostSummary{}, fmt.Errorf("load post hashtags: %w", err)
	}

	summary := toSummary(post)
	summary.Hashtags = tags
	return summary, nil
}

// UserActivitySnapshot aggregates a single user's activity since the given time
func (s *GormStore) UserActivitySnapshot(ctx context.Context, userID string, since time.Time) (UserActivity, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserActivity{}, ErrNotFound
	}
	if err != nil {
		return UserActivity{}, fmt.Errorf("load user: %w", err)
	}

	var agg struct {
		PostCount     int
		EngagementSum int
	}
	err = s.publicPosts(ctx).
		Select("COUNT(*) AS post_count, "+engagementSumExpr+" AS engagement_sum").
		Where("posts.user_id = ? AND posts.created_at >= ?", userID, since).
		Scan(&agg).Error
	if err != nil {
		return UserActivity{}, fmt.Errorf("aggregate user posts: %w", err)
	}

	var followers int64
	err = s.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ? AND created_at >= ?", userID, since).
		Count(&followers).Error
	if err != nil {
		return UserActivity{}, fmt.Errorf("count new followers: %w", err)
	}

	return UserActivity{
		UserID:        user.ID,
		Username:      user.Username,
		PostCount:     agg.PostCount,
		EngagementSum: agg.EngagementSum,
		NewFollowers:  int(followers),
	}, nil
}

// FollowingIDsOf returns the set of users the given user follows
func (s *GormStore) FollowingIDsOf(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load following: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// HashtagActivity aggregates every hashtag used by a public post since the given time
func (s *GormStore) HashtagActivity(ctx context.Context, since time.Time) ([]HashtagActivity, error) {
	var rows []HashtagActivity
	err := s.db.WithContext(ctx).
		Table("hashtags").
		Select("hashtags.id AS hashtag_id, hashtags.name AS name, COUNT(posts.id) AS recent_posts, "+engagementSumExpr+" AS engagement_sum").
		Joins("JOIN post_hashtags ON post_hashtags.hashtag_id = hashtags.id").
		Joins("JOIN posts ON posts.id = post_hashtags.post_id").
		Where("posts.created_at >= ? AND posts.is_public = ? AND posts.deleted_at IS NULL", since, true).
		Group("hashtags.id, hashtags.name").
		Order("hashtags.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate hashtag activity: %w", err)
	}
	return rows, nil
}

// PostCandidates returns public posts published since the given time
func (s *GormStore) PostCandidates(ctx context.Context, since time.Time) ([]PostSummary, error) {
	var posts []models.Post
	err := s.publicPosts(ctx).
		Preload("User").
		Where("posts.created_at >= ?", since).
		Order("posts.id").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("load post candidates: %w", err)
	}
	return toSummaries(posts), nil
}

// UserActivity aggregates posting and follower activity for every active user
func (s *GormStore) UserActivity(ctx context.Context, since time.Time) ([]UserActivity, error) {
	var postAggs []struct {
		UserID        string
		PostCount     int
		EngagementSum int
	}
	err := s.publicPosts(ctx).
		Select("posts.user_id AS user_id, COUNT(*) AS post_count, "+engagementSumExpr+" AS engagement_sum").
		Where("posts.created_at >= ?", since).
		Group("posts.user_id").
		Scan(&postAggs).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate user posts: %w", err)
	}

	var followAggs []struct {
		FollowingID  string
		NewFollowers int
	}
	err = s.db.WithContext(ctx).
		Model(&models.Follow{}).
		Select("following_id, COUNT(*) AS new_followers").
		Where("created_at >= ?", since).
		Group("following_id").
		Scan(&followAggs).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate new followers: %w", err)
	}

	byUser := make(map[string]*UserActivity)
	get := func(id string) *UserActivity {
		a, ok := byUser[id]
		if !ok {
			a = &UserActivity{UserID: id}
			byUser[id] = a
		}
		return a
	}
	for _, p := range postAggs {
		a := get(p.UserID)
		a.PostCount = p.PostCount
		a.EngagementSum = p.EngagementSum
	}
	for _, f := range followAggs {
		get(f.FollowingID).NewFollowers = f.NewFollowers
	}
	if len(byUser) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load active users: %w", err)
	}

	out := make([]UserActivity, 0, len(users))
	for _, u := range users {
		a := byUser[u.ID]
		a.Username = u.Username
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// HourlyCounts buckets an entity's activity into hours ending at now
func (s *GormStore) HourlyCounts(ctx context.Context, entity EntityType, id string, hours int, now time.Time) ([]int, error) {
	if hours <= 0 {
		return nil, ErrInvalidInput
	}
	from := now.Add(-time.Duration(hours) * time.Hour)

	var stamps []time.Time
	switch entity {
	case EntityHashtag:
		err := s.publicPosts(ctx).
			Joins("JOIN post_hashtags ON post_hashtags.post_id = posts.id").
			Where("post_hashtags.hashtag_id = ? AND posts.created_at >= ? AND posts.created_at <= ?", id, from, now).
			Pluck("posts.created_at", &stamps).Error
		if err != nil {
			return nil, fmt.Errorf("load hashtag activity: %w", err)
		}
	case EntityPost:
		for _, table := range []string{"likes", "comments", "reposts"} {
			var part []time.Time
			err := s.db.WithContext(ctx).
				Table(table).
				Where("post_id = ? AND created_at >= ? AND created_at <= ?", id, from, now).
				Pluck("created_at", &part).Error
			if err != nil {
				return nil, fmt.Errorf("load post %s: %w", table, err)
			}
			stamps = append(stamps, part...)
		}
	case EntityUser:
		err := s.publicPosts(ctx).
			Where("posts.user_id = ? AND posts.created_at >= ? AND posts.created_at <= ?", id, from, now).
			Pluck("posts.created_at", &stamps).Error
		if err != nil {
			return nil, fmt.Errorf("load user activity: %w", err)
		}
	default:
		return nil, ErrInvalidInput
	}

	buckets := make([]int, hours)
	for _, at := range stamps {
		if idx, ok := bucketIndex(now, at, hours); ok {
			buckets[idx]++
		}
	}
	return buckets, nil
}

// HasHistory reports whether the user authored at least one post
func (s *GormStore) HasHistory(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check post history: %w", err)
	}
	return count > 0, nil
}

// Timeline returns the newest posts by the user and the users they follow
func (s *GormStore) Timeline(ctx context.Context, userID string, limit int) ([]PostSummary, error) {
	following, err := s.FollowingIDsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	authors := []string{userID}
	for id := range following {
		authors = append(authors, id)
	}

	var posts []models.Post
	err = s.publicPosts(ctx).
		Preload("User").
		Where("posts.user_id IN ?", authors).
		Order("posts.created_at DESC, posts.id ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return toSummaries(posts), nil
}

// UserProfile loads a user's profile counters
func (s *GormStore) UserProfile(ctx context.Context, userID string) (UserProfile, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("load user: %w", err)
	}
	return toProfile(user), nil
}

// PopularPosts ranks posts published since the given time by weighted engagement
func (s *GormStore) PopularPosts(ctx context.Context, since time.Time, limit int) ([]PostSummary, error) {
	var posts []models.Post
	err := s.publicPosts(ctx).
		Preload("User").
		Where("posts.created_at >= ?", since).
		Order("(posts.like_count + posts.comment_count * 2 + posts.repost_count * 1.5) DESC, posts.id ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("load popular posts: %w", err)
	}
	return toSummaries(posts), nil
}

// CreateUser creates a new user
func (s *GormStore) CreateUser(ctx context.Context, username, displayName string) (UserProfile, error) {
	if strings.TrimSpace(username) == "" {
		return UserProfile{}, ErrInvalidInput
	}
	if displayName == "" {
		displayName = username
	}

	user := models.User{Username: username, DisplayName: displayName}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return toProfile(user), nil
}

// CreatePost stores a post, links its hashtags and bumps the author's post count
func (s *GormStore) CreatePost(ctx context.Context, authorID, content string, hashtags []string) (PostSummary, error) {
	var author models.User
	err := s.db.WithContext(ctx).Where("id = ?", authorID).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostSummary{}, ErrNotFound
	}
	if err != nil {
		return PostSummary{}, fmt.Errorf("load author: %w", err)
	}

	post := models.Post{UserID: authorID, Content: content, IsPublic: true}
	tags := NormalizeHashtags(hashtags)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}

		for _, name := range tags {
			var tag models.Hashtag
			if err := tx.Where(models.Hashtag{Name: name}).
				Attrs(models.Hashtag{LastUsedAt: post.CreatedAt}).
				FirstOrCreate(&tag).Error; err != nil {
				return err
			}
			link := models.PostHashtag{PostID: post.ID, HashtagID: tag.ID, CreatedAt: post.CreatedAt}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Hashtag{}).
				Where("id = ?", tag.ID).
				Updates(map[string]interface{}{
					"post_count":   gorm.Expr("post_count + 1"),
					"last_used_at": post.CreatedAt,
				}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.User{}).
			Where("id = ?", authorID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	})
	if err != nil {
		return PostSummary{}, fmt.Errorf("create post: %w", err)
	}

	post.User = author
	summary := toSummary(post)
	summary.Hashtags = tags
	return summary, nil
}

// Like records a like; it reports false when the user already liked the post
func (s *GormStore) Like(ctx context.Context, userID, postID string) (bool, error) {
	return s.addReaction(ctx, &models.Like{UserID: userID, PostID: postID}, "likes", "like_count")
}

// Unlike removes a like; it reports false when there was nothing to remove
func (s *GormStore) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	return s.removeReaction(ctx, &models.Like{}, userID, postID, "like_count")
}

// Repost records a repost; it reports false when the user already reposted
func (s *GormStore) Repost(ctx context.Context, userID, postID string) (bool, error) {
	return s.addReaction(ctx, &models.Repost{UserID: userID, PostID: postID}, "reposts", "repost_count")
}

// Comment adds a comment and bumps the post's comment count
func (s *GormStore) Comment(ctx context.Context, userID, postID, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrInvalidInput
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Comment{UserID: userID, PostID: postID, Body: body}).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
}

// Follow creates a follow edge and keeps both users' counters in step
func (s *GormStore) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == followingID {
		return false, ErrInvalidInput
	}
	if err := s.requireUsers(ctx, followerID, followingID); err != nil {
		return false, err
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", followerID, followingID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if err := tx.Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error; err != nil {
			return err
		}
		created = true
		return tx.Model(&models.User{}).Where("id = ?", followingID).
			UpdateColumn("follower_count", gorm.Expr("follower_count + 1")).Error
	})
	if err != nil {
		return false, fmt.Errorf("follow: %w", err)
	}
	return created, nil
}

// Unfollow removes a follow edge and keeps both users' counters in step
func (s *GormStore) Unfollow(ctx context.Context, followerID, followingID string) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.User{}).Where("id = ? AND following_count > 0", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count - 1")).Error; err != nil {
			return err
		}
		removed = true
		return tx.Model(&models.User{}).Where("id = ? AND follower_count > 0", followingID).
			UpdateColumn("follower_count", gorm.Expr("follower_count - 1")).Error
	})
	if err != nil {
		return false, fmt.Errorf("unfollow: %w", err)
	}
	return removed, nil
}

// addReaction inserts a like or repost row unless the pair already exists
func (s *GormStore) addReaction(ctx context.Context, row interface{}, table, counter string) (bool, error) {
	var userID, postID string
	switch r := row.(type) {
	case *models.Like:
		userID, postID = r.UserID, r.PostID
	case *models.Repost:
		userID, postID = r.UserID, r.PostID
	default:
		return false, ErrInvalidInput
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return false, err
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table(table).
			Where("user_id = ? AND post_id = ?", userID, postID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if err := tx.Create(row).Error; err != nil {
			return err
		}
		created = true
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn(counter, gorm.Expr(counter+" + 1")).Error
	})
	if err != nil {
		return false, fmt.Errorf("add %s: %w", table, err)
	}
	return created, nil
}

func (s *GormStore) removeReaction(ctx context.Context, model interface{}, userID, postID, counter string) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.Post{}).
			Where("id = ? AND "+counter+" > 0", postID).
			UpdateColumn(counter, gorm.Expr(counter+" - 1")).Error
	})
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	return removed, nil
}

func (s *GormStore) requirePost(ctx context.Context, postID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) requireUsers(ctx context.Context, ids ...string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if int(count) != len(ids) {
		return ErrNotFound
	}
	return nil
}

func toSummary(post models.Post) PostSummary {
	return PostSummary{
		ID:             post.ID,
		AuthorID:       post.UserID,
		AuthorUsername: post.User.Username,
		Content:        post.Content,
		Likes:          post.LikeCount,
		Comments:       post.CommentCount,
		Reposts:        post.RepostCount,
		PublishedAt:    post.CreatedAt,
	}
}

func toSummaries(posts []models.Post) []PostSummary {
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, toSummary(p))
	}
	return out
}

func toProfile(user models.User) UserProfile {
	return UserProfile{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		Bio:            user.Bio,
		PostCount:      user.PostCount,
		FollowerCount:  user.FollowerCount,
		FollowingCount: user.FollowingCount,
		CreatedAt:      user.CreatedAt,
	}
}

// NormalizeHashtags lowercases, strips '#' and de-duplicates hashtag names, keeping first-seen order
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
