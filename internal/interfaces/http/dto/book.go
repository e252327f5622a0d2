// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"storytune-api/internal/domain/entity"
)

// CreateBookRequest 创建书籍请求
type CreateBookRequest struct {
	UserID string `json:"user_id" binding:"required,max=64"`
	Title  string `json:"title" binding:"required,max=255"`
	Genre  string `json:"genre" binding:"required,max=64"`
}

// BookResponse 书籍响应
type BookResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Genre     string    `json:"genre"`
	CreatedAt time.Time `json:"created_at"`
}

// ToBookResponse 实体转响应
func ToBookResponse(book *entity.Book) *BookResponse {
	return &BookResponse{
		ID:        book.ID,
		UserID:    book.UserID,
		Title:     book.Title,
		Genre:     book.Genre,
		CreatedAt: book.CreatedAt,
	}
}

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID        string            `json:"id"`
	BookID    string            `json:"book_id"`
	SeqNum    int               `json:"seq_num"`
	Status    string            `json:"status"`
	Summary   string            `json:"summary,omitempty"`
	MusicRefs []entity.MusicRef `json:"music_refs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ToChapterResponse 实体转响应
func ToChapterResponse(chapter *entity.Chapter) *ChapterResponse {
	return &ChapterResponse{
		ID:        chapter.ID,
		BookID:    chapter.BookID,
		SeqNum:    chapter.SeqNum,
		Status:    string(chapter.Status),
		Summary:   chapter.Summary,
		MusicRefs: chapter.MusicRefs,
		CreatedAt: chapter.CreatedAt,
		UpdatedAt: chapter.UpdatedAt,
	}
}

// ToChapterResponses 实体列表转响应列表
func ToChapterResponses(chapters []*entity.Chapter) []*ChapterResponse {
	out := make([]*ChapterResponse, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, ToChapterResponse(ch))
	}
	return out
}
