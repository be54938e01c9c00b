package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type memPost struct {
	summary PostSummary
	public  bool
}

// MemoryStore is a thread-safe in-process Store. Hashtag IDs equal their
// normalized names. Failure and latency can be injected to exercise the
// degraded paths of callers.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	users    map[string]*UserProfile
	posts    map[string]*memPost
	hashtags map[string]struct{}
	follows  map[string]map[string]time.Time // follower -> following -> at
	likes    map[string]map[string]time.Time // post -> user -> at
	reposts  map[string]map[string]time.Time // post -> user -> at
	comments map[string][]time.Time          // post -> at

	fail  error
	delay time.Duration
	calls atomic.Int64
}

// NewMemoryStore creates an empty in-memory store using the wall clock
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    make(map[string]*UserProfile),
		posts:    make(map[string]*memPost),
		hashtags: make(map[string]struct{}),
		follows:  make(map[string]map[string]time.Time),
		likes:    make(map[string]map[string]time.Time),
		reposts:  make(map[string]map[string]time.Time),
		comments: make(map[string][]time.Time),
	}
}

// SetClock overrides the clock used to timestamp writes
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetFailure makes every subsequent call return err; nil restores normal operation
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// SetDelay makes every subsequent call wait d or until its context is done
func (m *MemoryStore) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many store operations have been invoked
func (m *MemoryStore) Calls() int64 {
	return m.calls.Load()
}

// PutUser inserts or replaces a user fixture
func (m *MemoryStore) PutUser(profile UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Username
	}
	p := profile
	m.users[p.ID] = &p
}

// PutPost inserts or replaces a public post fixture with the given counters and hashtag names
func (m *MemoryStore) PutPost(post PostSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.Hashtags = NormalizeHashtags(post.Hashtags)
	for _, tag := range post.Hashtags {
		m.hashtags[tag] = struct{}{}
	}
	if u, ok := m.users[post.AuthorID]; ok && post.AuthorUsername == "" {
		post.AuthorUsername = u.Username
	}
	m.posts[post.ID] = &memPost{summary: post, public: true}
}

// PutFollow inserts a follow edge created at the given time without touching counters
func (m *MemoryStore) PutFollow(followerID, followingID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.follows[followerID] == nil {
		m.follows[followerID] = make(map[string]time.Time)
	}
	m.follows[followerID][followingID] = at
}

func (m *MemoryStore) enter(ctx context.Context) error {
	m.calls.Add(1)

	m.mu.RLock()
	delay, fail := m.delay, m.fail
	m.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		return fail
	}
	return ctx.Err()
}

func (m *MemoryStore) copyPost(p *memPost) PostSummary {
	s := p.summary
	s.Hashtags = append([]string(nil), p.summary.Hashtags...)
	if u, ok := m.users[s.AuthorID]; ok {
		s.AuthorUsername = u.Username
	}
	return s
}

func hasTag(p *memPost, tag string) bool {
	for _, t := range p.summary.Hashtags {
		if t == tag {
			return true
		}
	}
	return false
}

// CountRecentPostsForHashtag counts public posts tagged with the hashtag since the given time
func (m *MemoryStore) CountRecentPostsForHashtag(ctx context.Context, hashtagID string, since time.Time) (int, error) {
	if err := m.enter(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, p := range m.posts {
		if p.public && !p.summary.PublishedAt.Before(since) && hasTag(p, hashtagID) {
			count++
		}
	}
	return count, nil
}

// EngagementSumForHashtag sums likes, comments and reposts of the hashtag's recent posts
func (m *MemoryStore) EngagementSumForHashtag(ctx context.Context, hashtagID string, since time.Time) (int, error) {
	if err := m.enter(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := 0
	for _, p := range m.posts {
		if p.public && !p.summary.PublishedAt.Before(since) && hasTag(p, hashtagID) {
			sum += engagementOf(p.summary.Likes, p.summary.Comments, p.summary.Reposts)
		}
	}
	return sum, nil
}

// PostEngagementSnapshot returns a copy of one post
func (m *MemoryStore) PostEngagementSnapshot(ctx context.Context, postID string) (PostSummary, error) {
	if err := m.enter(ctx); err != nil {
		return PostSummary{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[postID]
	if !ok {
		return PostSummary{}, ErrNotFound
	}
	return m.copyPost(p), nil
}

// UserActivitySnapshot aggregates a single user's activity since the given time
func (m *MemoryStore) UserActivitySnapshot(ctx context.Context, userID string, since time.Time) (UserActivity, error) {
	if err := m.enter(ctx); err != nil {
		return UserActivity{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return UserActivity{}, ErrNotFound
	}
	activity := m.userActivityLocked(since)[userID]
	activity.UserID = userID
	activity.Username = u.Username
	return activity, nil
}

// FollowingIDsOf returns the set of users the given user follows
func (m *MemoryStore) FollowingIDsOf(ctx context.Context, userID string) (map[string]struct{}, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := make(map[string]struct{}, len(m.follows[userID]))
	for id := range m.follows[userID] {
		set[id] = struct{}{}
	}
	return set, nil
}

// HashtagActivity aggregates every hashtag used by a public post since the given time
func (m *MemoryStore) HashtagActivity(ctx context.Context, since time.Time) ([]HashtagActivity, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byTag := make(map[string]*HashtagActivity)
	for _, p := range m.posts {
		if !p.public || p.summary.PublishedAt.Before(since) {
			continue
		}
		for _, tag := range p.summary.Hashtags {
			a, ok := byTag[tag]
			if !ok {
				a = &HashtagActivity{HashtagID: tag, Name: tag}
				byTag[tag] = a
			}
			a.RecentPosts++
			a.EngagementSum += engagementOf(p.summary.Likes, p.summary.Comments, p.summary.Reposts)
		}
	}

	out := make([]HashtagActivity, 0, len(byTag))
	for _, a := range byTag {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HashtagID < out[j].HashtagID })
	return out, nil
}

// PostCandidates returns public posts published since the given time
func (m *MemoryStore) PostCandidates(ctx context.Context, since time.Time) ([]PostSummary, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PostSummary, 0)
	for _, p := range m.posts {
		if p.public && !p.summary.PublishedAt.Before(since) {
			out = append(out, m.copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UserActivity aggregates posting and follower activity for every active user
func (m *MemoryStore) UserActivity(ctx context.Context, since time.Time) ([]UserActivity, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byUser := m.userActivityLocked(since)
	out := make([]UserActivity, 0, len(byUser))
	for id, a := range byUser {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		a.UserID = id
		a.Username = u.Username
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MemoryStore) userActivityLocked(since time.Time) map[string]UserActivity {
	byUser := make(map[string]UserActivity)
	for _, p := range m.posts {
		if !p.public || p.summary.PublishedAt.Before(since) {
			continue
		}
		a := byUser[p.summary.AuthorID]
		a.PostCount++
		a.EngagementSum += engagementOf(p.summary.Likes, p.summary.Comments, p.summary.Reposts)
		byUser[p.summary.AuthorID] = a
	}
	for _, following := range m.follows {
		for id, at := range following {
			if at.Before(since) {
				continue
			}
			a := byUser[id]
			a.NewFollowers++
			byUser[id] = a
		}
	}
	return byUser
}

// HourlyCounts buckets an entity's activity into hours ending at now
func (m *MemoryStore) HourlyCounts(ctx context.Context, entity EntityType, id string, hours int, now time.Time) ([]int, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	if hours <= 0 || !entity.Valid() {
		return nil, ErrInvalidInput
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stamps []time.Time
	switch entity {
	case EntityHashtag:
		for _, p := range m.posts {
			if p.public && hasTag(p, id) {
				stamps = append(stamps, p.summary.PublishedAt)
			}
		}
	case EntityUser:
		for _, p := range m.posts {
			if p.public && p.summary.AuthorID == id {
				stamps = append(stamps, p.summary.PublishedAt)
			}
		}
	case EntityPost:
		for _, at := range m.likes[id] {
			stamps = append(stamps, at)
		}
		for _, at := range m.reposts[id] {
			stamps = append(stamps, at)
		}
		stamps = append(stamps, m.comments[id]...)
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
func (m *MemoryStore) HasHistory(ctx context.Context, userID string) (bool, error) {
	if err := m.enter(ctx); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.posts {
		if p.summary.AuthorID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Timeline returns the newest posts by the user and the users they follow
func (m *MemoryStore) Timeline(ctx context.Context, userID string, limit int) ([]PostSummary, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PostSummary, 0)
	for _, p := range m.posts {
		if !p.public {
			continue
		}
		author := p.summary.AuthorID
		if _, followed := m.follows[userID][author]; author == userID || followed {
			out = append(out, m.copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserProfile returns a copy of a user's profile
func (m *MemoryStore) UserProfile(ctx context.Context, userID string) (UserProfile, error) {
	if err := m.enter(ctx); err != nil {
		return UserProfile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return *u, nil
}

// PopularPosts ranks posts published since the given time by weighted engagement
func (m *MemoryStore) PopularPosts(ctx context.Context, since time.Time, limit int) ([]PostSummary, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PostSummary, 0)
	for _, p := range m.posts {
		if p.public && !p.summary.PublishedAt.Before(since) {
			out = append(out, m.copyPost(p))
		}
	}
	weighted := func(p PostSummary) float64 {
		return float64(p.Likes) + float64(p.Comments)*2 + float64(p.Reposts)*1.5
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := weighted(out[i]), weighted(out[j])
		if wi != wj {
			return wi > wj
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateUser creates a new user
func (m *MemoryStore) CreateUser(ctx context.Context, username, displayName string) (UserProfile, error) {
	if err := m.enter(ctx); err != nil {
		return UserProfile{}, err
	}
	if strings.TrimSpace(username) == "" {
		return UserProfile{}, ErrInvalidInput
	}
	if displayName == "" {
		displayName = username
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	profile := &UserProfile{
		ID:          uuid.New().String(),
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   m.now(),
	}
	m.users[profile.ID] = profile
	return *profile, nil
}

// CreatePost stores a post and bumps the author's post count
func (m *MemoryStore) CreatePost(ctx context.Context, authorID, content string, hashtags []string) (PostSummary, error) {
	if err := m.enter(ctx); err != nil {
		return PostSummary{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	author, ok := m.users[authorID]
	if !ok {
		return PostSummary{}, ErrNotFound
	}

	tags := NormalizeHashtags(hashtags)
	for _, tag := range tags {
		m.hashtags[tag] = struct{}{}
	}
	p := &memPost{
		summary: PostSummary{
			ID:             uuid.New().String(),
			AuthorID:       authorID,
			AuthorUsername: author.Username,
			Content:        content,
			Hashtags:       tags,
			PublishedAt:    m.now(),
		},
		public: true,
	}
	m.posts[p.summary.ID] = p
	author.PostCount++
	return m.copyPost(p), nil
}

// Like records a like; it reports false when the user already liked the post
func (m *MemoryStore) Like(ctx context.Context, userID, postID string) (bool, error) {
	return m.react(ctx, m.likes, userID, postID, func(s *PostSummary, d int) { s.Likes += d }, 1)
}

// Unlike removes a like; it reports false when there was nothing to remove
func (m *MemoryStore) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	return m.react(ctx, m.likes, userID, postID, func(s *PostSummary, d int) { s.Likes += d }, -1)
}

// Repost records a repost; it reports false when the user already reposted
func (m *MemoryStore) Repost(ctx context.Context, userID, postID string) (bool, error) {
	return m.react(ctx, m.reposts, userID, postID, func(s *PostSummary, d int) { s.Reposts += d }, 1)
}

func (m *MemoryStore) react(ctx context.Context, table map[string]map[string]time.Time, userID, postID string, bump func(*PostSummary, int), delta int) (bool, error) {
	if err := m.enter(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return false, ErrNotFound
	}
	_, exists := table[postID][userID]
	switch {
	case delta > 0 && !exists:
		if table[postID] == nil {
			table[postID] = make(map[string]time.Time)
		}
		table[postID][userID] = m.now()
	case delta < 0 && exists:
		delete(table[postID], userID)
	default:
		return false, nil
	}
	bump(&p.summary, delta)
	return true, nil
}

// Comment adds a comment and bumps the post's comment count
func (m *MemoryStore) Comment(ctx context.Context, userID, postID, body string) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(body) == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return ErrNotFound
	}
	m.comments[postID] = append(m.comments[postID], m.now())
	p.summary.Comments++
	return nil
}

// Follow creates a follow edge and keeps both users' counters in step
func (m *MemoryStore) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := m.enter(ctx); err != nil {
		return false, err
	}
	if followerID == followingID {
		return false, ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	follower, ok1 := m.users[followerID]
	following, ok2 := m.users[followingID]
	if !ok1 || !ok2 {
		return false, ErrNotFound
	}
	if _, exists := m.follows[followerID][followingID]; exists {
		return false, nil
	}
	if m.follows[followerID] == nil {
		m.follows[followerID] = make(map[string]time.Time)
	}
	m.follows[followerID][followingID] = m.now()
	follower.FollowingCount++
	following.FollowerCount++
	return true, nil
}

// Unfollow removes a follow edge and keeps both users' counters in step
func (m *MemoryStore) Unfollow(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := m.enter(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.follows[followerID][followingID]; !exists {
		return false, nil
	}
	delete(m.follows[followerID], followingID)
	if u, ok := m.users[followerID]; ok && u.FollowingCount > 0 {
		u.FollowingCount--
	}
	if u, ok := m.users[followingID]; ok && u.FollowerCount > 0 {
		u.FollowerCount--
	}
	return true, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
