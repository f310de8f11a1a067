package model

import "time"

// Post 内容主体
// EngagementScore / IsTrending 只由热度计算任务写入
type Post struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID        string    `gorm:"type:varchar(36);index:idx_post_author" json:"author_id"`
	Title           string    `gorm:"type:varchar(200)" json:"title"`
	Payload         string    `gorm:"type:text" json:"payload"`
	LikesCount      int64     `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount   int64     `gorm:"not null;default:0" json:"comments_count"`
	SharesCount     int64     `gorm:"not null;default:0" json:"shares_count"`
	ViewsCount      int64     `gorm:"not null;default:0" json:"views_count"`
	EngagementScore float64   `gorm:"not null;default:0;index:idx_post_score" json:"engagement_score"`
	IsTrending      bool      `gorm:"not null;default:false;index" json:"is_trending"`
	IsPinned        bool      `gorm:"not null;default:false" json:"is_pinned"`
	Banned          bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt       time.Time `gorm:"index:idx_post_created" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }
