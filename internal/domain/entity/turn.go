// Package entity 定义领域实体
package entity

import (
	"time"
)

// Speaker 对话轮次的发言方
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerGenerator Speaker = "generator"
)

// Turn 章节内的对话轮次，按 SeqNum 追加写，不可修改文本
// Emotion 由分类服务异步回填，分类未完成时为 nil。
type Turn struct {
	ID        string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID string        `json:"chapter_id" gorm:"type:uuid;index;not null"`
	SeqNum    int           `json:"seq_num" gorm:"not null"`
	Speaker   Speaker       `json:"speaker" gorm:"type:varchar(20);not null"`
	Text      string        `json:"text" gorm:"type:text;not null"`
	Emotion   EmotionVector `json:"emotion,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Turn) TableName() string {
	return "turns"
}

// NewTurn 创建新轮次
func NewTurn(chapterID string, seqNum int, speaker Speaker, text string) *Turn {
	return &Turn{
		ChapterID: chapterID,
		SeqNum:    seqNum,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// HasEmotion 检查轮次是否已附带情感向量
func (t *Turn) HasEmotion() bool {
	return len(t.Emotion) > 0
}
