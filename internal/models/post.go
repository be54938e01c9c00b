package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a published piece of content with cached engagement counters
type Post struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	UserID  string `gorm:"not null;size:36;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content string `gorm:"type:text" json:"content"`

	// Engagement counters, incremented alongside the likes/comments/reposts rows
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	RepostCount  int `gorm:"default:0" json:"repost_count"`

	IsPublic bool `gorm:"default:true" json:"is_public"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Hashtag represents a hashtag used in posts
type Hashtag struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"uniqueIndex;not null" json:"name"` // lowercased, without '#'
	PostCount  int       `gorm:"default:0" json:"post_count"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostHashtag links posts to hashtags (many-to-many)
type PostHashtag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"not null;size:36;index" json:"post_id"`
	HashtagID string    `gorm:"not null;size:36;index" json:"hashtag_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Like records a user liking a post
type Like struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;size:36;uniqueIndex:idx_likes_pair" json:"user_id"`
	PostID    string    `gorm:"not null;size:36;uniqueIndex:idx_likes_pair;index" json:"post_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Comment is a comment left on a post
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;size:36;index" json:"user_id"`
	PostID    string    `gorm:"not null;size:36;index" json:"post_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Repost records a user resharing a post
type Repost struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;size:36;uniqueIndex:idx_reposts_pair" json:"user_id"`
	PostID    string    `gorm:"not null;size:36;uniqueIndex:idx_reposts_pair;index" json:"post_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (h *Hashtag) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = generateUUID()
	}
	return nil
}

func (ph *PostHashtag) BeforeCreate(tx *gorm.DB) error {
	if ph.ID == "" {
		ph.ID = generateUUID()
	}
	return nil
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (r *Repost) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

// AllModels lists every table the service migrates, in foreign-key order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Follow{},
		&Post{},
		&Hashtag{},
		&PostHashtag{},
		&Like{},
		&Comment{},
		&Repost{},
	}
}
