// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"storytune-api/internal/application/lifecycle"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/domain/repository"
	"storytune-api/internal/interfaces/http/dto"
	apperrors "storytune-api/pkg/errors"
)

// BookHandler 书籍处理器
type BookHandler struct {
	books     repository.BookRepository
	chapters  repository.ChapterRepository
	lifecycle *lifecycle.Manager
}

// NewBookHandler 创建书籍处理器
func NewBookHandler(books repository.BookRepository, chapters repository.ChapterRepository, lm *lifecycle.Manager) *BookHandler {
	return &BookHandler{
		books:     books,
		chapters:  chapters,
		lifecycle: lm,
	}
}

// CreateBook 创建书籍
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req dto.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	book := entity.NewBook(req.UserID, req.Title, req.Genre)
	if err := h.books.Create(c.Request.Context(), book); err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}

	dto.Created(c, dto.ToBookResponse(book))
}

// GetBook 获取书籍
func (h *BookHandler) GetBook(c *gin.Context) {
	book, err := h.books.GetByID(c.Request.Context(), c.Param("bid"))
	if err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}
	if book == nil {
		dto.FromError(c, apperrors.ErrBookNotFound)
		return
	}

	dto.Success(c, dto.ToBookResponse(book))
}

// OpenChapter 开启新章节
func (h *BookHandler) OpenChapter(c *gin.Context) {
	bookID := c.Param("bid")

	book, err := h.books.GetByID(c.Request.Context(), bookID)
	if err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}
	if book == nil {
		dto.FromError(c, apperrors.ErrBookNotFound)
		return
	}

	chapter, err := h.lifecycle.OpenChapter(c.Request.Context(), bookID)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Created(c, dto.ToChapterResponse(chapter))
}

// ListChapters 获取书籍章节列表：已关闭章节按序号升序，活跃章节附在末尾
func (h *BookHandler) ListChapters(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := c.Param("bid")

	book, err := h.books.GetByID(ctx, bookID)
	if err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}
	if book == nil {
		dto.FromError(c, apperrors.ErrBookNotFound)
		return
	}

	closed, err := h.chapters.ListClosedByBook(ctx, bookID)
	if err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}

	active, err := h.chapters.GetActiveByBook(ctx, bookID)
	if err != nil {
		dto.FromError(c, apperrors.ErrDatabaseError.WithError(err))
		return
	}
	if active != nil {
		closed = append(closed, active)
	}

	dto.Success(c, dto.ToChapterResponses(closed))
}
