// Package entity 定义领域实体
package entity

import (
	"time"
)

// ChapterStatus 章节状态
type ChapterStatus string

// 章节状态机：open -> summarizing -> closed（终态，不支持重开）
const (
	ChapterStatusOpen        ChapterStatus = "open"
	ChapterStatusSummarizing ChapterStatus = "summarizing"
	ChapterStatusClosed      ChapterStatus = "closed"
)

// Chapter 章节实体
// 每本书同一时刻至多一个章节处于 {open, summarizing}，由状态机管理器保证。
type Chapter struct {
	ID        string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BookID    string        `json:"book_id" gorm:"type:uuid;index;not null"`
	SeqNum    int           `json:"seq_num" gorm:"not null"`
	Status    ChapterStatus `json:"status" gorm:"type:varchar(20);default:'open';index"`
	Summary   string        `json:"summary,omitempty" gorm:"type:text"`
	MusicRefs []MusicRef    `json:"music_refs,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节
func NewChapter(bookID string, seqNum int) *Chapter {
	now := time.Now()
	return &Chapter{
		BookID:    bookID,
		SeqNum:    seqNum,
		Status:    ChapterStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查章节是否占用书籍的活跃位
func (c *Chapter) IsActive() bool {
	return c.Status == ChapterStatusOpen || c.Status == ChapterStatusSummarizing
}

// IsClosed 检查章节是否已关闭
func (c *Chapter) IsClosed() bool {
	return c.Status == ChapterStatusClosed
}

// StuckInSummarizing 检查章节是否卡在 summarizing 超过给定时长
// 用于崩溃恢复：requestSummary 之后、落库之前失败的任务可被监测并重驱动。
func (c *Chapter) StuckInSummarizing(after time.Duration, now time.Time) bool {
	return c.Status == ChapterStatusSummarizing && now.Sub(c.UpdatedAt) > after
}
