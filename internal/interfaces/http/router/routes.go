// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, handlers *Handlers) {
	// 书籍管理
	books := v1.Group("/books")
	{
		books.POST("", handlers.Book.CreateBook)
		books.GET("/:bid", handlers.Book.GetBook)
		books.POST("/:bid/chapters", handlers.Book.OpenChapter)
		books.GET("/:bid/chapters", handlers.Book.ListChapters)
	}

	// 剧情交互（同步路径）
	story := v1.Group("/story")
	{
		story.POST("/continue", handlers.Story.Continue)
		story.POST("/chapter/finish", handlers.Story.FinishChapter)
	}

	// 异步任务
	jobs := v1.Group("/jobs")
	{
		jobs.POST("", handlers.Job.CreateJob)
		jobs.GET("/:jid", handlers.Job.GetJob)
	}
}
