// Package repository 定义领域仓储接口
package repository

import (
	"context"

	"storytune-api/internal/domain/entity"
)

// BookRepository 书籍仓储接口
type BookRepository interface {
	Create(ctx context.Context, book *entity.Book) error
	// GetByID 未找到时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Book, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Book, error)
}
