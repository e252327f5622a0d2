// Package entity 定义领域实体
package entity

import (
	"time"
)

// GenreRequirementDoc 题材要求文档
// 仅作为检索语料使用，运行时只读；索引启动时构建一次。
type GenreRequirementDoc struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Genre     string    `json:"genre" gorm:"type:varchar(64);index;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (GenreRequirementDoc) TableName() string {
	return "genre_requirement_docs"
}
