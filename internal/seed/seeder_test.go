package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/ranking/internal/models"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSeed_MemoryStore(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	sum, err := NewSeeder(mem, 42).Seed(ctx, TestPlan())
	require.NoError(t, err)

	plan := TestPlan()
	assert.Equal(t, plan.Users, sum.Users)
	assert.Equal(t, plan.Posts, sum.Posts)
	assert.Equal(t, plan.Comments, sum.Comments)
	assert.LessOrEqual(t, sum.Likes, plan.Likes)
	assert.LessOrEqual(t, sum.Follows, plan.Follows)

	posts, err := mem.PostCandidates(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, posts, plan.Posts)

	likes := 0
	for _, p := range posts {
		assert.NotEmpty(t, p.Hashtags, "every seeded post carries a hashtag")
		likes += p.Likes
	}
	assert.Equal(t, sum.Likes, likes)
}

func TestSeed_EmptyPlan(t *testing.T) {
	sum, err := NewSeeder(store.NewMemoryStore(), 1).Seed(context.Background(), Plan{})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestClean(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	ctx := context.Background()
	_, err = NewSeeder(store.NewGormStore(db), 7).Seed(ctx, TestPlan())
	require.NoError(t, err)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(TestPlan().Users), users)

	require.NoError(t, Clean(ctx, db))
	for _, m := range []interface{}{&models.User{}, &models.Post{}, &models.Like{}, &models.Hashtag{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
}
