// Package dto 提供 HTTP 层数据传输对象
package dto

// ContinueStoryRequest 剧情续写请求
type ContinueStoryRequest struct {
	UserID  string `json:"user_id" binding:"required,max=64"`
	BookID  string `json:"book_id" binding:"required,uuid"`
	Message string `json:"message" binding:"required"`
}

// FinishChapterRequest 章节收尾请求
type FinishChapterRequest struct {
	UserID    string `json:"user_id" binding:"required,max=64"`
	BookID    string `json:"book_id" binding:"required,uuid"`
	ChapterID string `json:"chapter_id,omitempty" binding:"omitempty,uuid"`
}
