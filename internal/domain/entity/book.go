// Package entity 定义领域实体
package entity

import (
	"time"
)

// Book 书籍实体
// Genre 创建后不可变：提示词构造与情感加权均依赖它。
type Book struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Genre     string    `json:"genre" gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Book) TableName() string {
	return "books"
}

// NewBook 创建新书籍
func NewBook(userID, title, genre string) *Book {
	now := time.Now()
	return &Book{
		UserID:    userID,
		Title:     title,
		Genre:     genre,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy 检查书籍归属
func (b *Book) OwnedBy(userID string) bool {
	return b.UserID == userID
}
