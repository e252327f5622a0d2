// Package prompt 提供生成请求的提示词构造
package prompt

import (
	"fmt"
	"strings"

	apperrors "storytune-api/pkg/errors"
)

// Input 构造输入
type Input struct {
	Genre       string
	UserMessage string
	// PriorText 既有剧情文本，按时间先后排列
	PriorText string
	// Evidence 检索到的题材要求片段，按相关性降序排列
	Evidence []string
}

// Payload 构造结果
type Payload struct {
	System string
	Prompt string
	// UsedRunes 预算内三个可变部分实际占用的 rune 数
	UsedRunes int
}

// Builder 提示词构造器
// 预算按 rune 计：用户消息永不截断；既有剧情从头部截断（保留最近内容）；
// 题材片段最后装入，装不下的整体或部分丢弃。
type Builder struct {
	budgetRunes int
	priorShare  float64
}

// NewBuilder 创建提示词构造器
func NewBuilder(budgetRunes int, priorShare float64) *Builder {
	if budgetRunes <= 0 {
		budgetRunes = 6000
	}
	if priorShare <= 0 || priorShare >= 1 {
		priorShare = 0.5
	}
	return &Builder{
		budgetRunes: budgetRunes,
		priorShare:  priorShare,
	}
}

// Build 构造生成请求载荷
// 用户消息单独超出预算时返回 ErrPromptTooLarge，这是唯一的失败情形。
func (b *Builder) Build(in *Input) (*Payload, error) {
	userRunes := len([]rune(in.UserMessage))
	if userRunes > b.budgetRunes {
		return nil, apperrors.ErrPromptTooLarge.WithDetail(
			fmt.Sprintf("user message is %d runes, budget is %d", userRunes, b.budgetRunes))
	}

	remainder := b.budgetRunes - userRunes
	used := userRunes

	priorBudget := int(float64(remainder) * b.priorShare)
	prior := tailRunes(in.PriorText, priorBudget)
	remainder -= len([]rune(prior))
	used += len([]rune(prior))

	var evidence []string
	for _, piece := range in.Evidence {
		if remainder <= 0 {
			break
		}
		kept := headRunes(piece, remainder)
		remainder -= len([]rune(kept))
		used += len([]rune(kept))
		evidence = append(evidence, kept)
	}

	return &Payload{
		System:    buildSystem(in.Genre, evidence),
		Prompt:    buildPrompt(prior, in.UserMessage),
		UsedRunes: used,
	}, nil
}

// buildSystem 组装系统指令：题材声明加检索到的题材要求
func buildSystem(genre string, evidence []string) string {
	var sb strings.Builder
	sb.WriteString("你是一名长篇小说的续写者，负责根据读者的输入推进剧情。\n")
	if genre != "" {
		sb.WriteString("本书题材：" + genre + "\n")
	}
	if len(evidence) > 0 {
		sb.WriteString("创作时遵循以下题材要求：\n")
		for i, piece := range evidence {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, piece))
		}
	}
	return sb.String()
}

// buildPrompt 组装正文：既有剧情在前，用户输入在后
func buildPrompt(prior, userMessage string) string {
	var sb strings.Builder
	if prior != "" {
		sb.WriteString("已有剧情：\n")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}
	sb.WriteString("读者输入：\n")
	sb.WriteString(userMessage)
	return sb.String()
}

// tailRunes 保留字符串末尾至多 n 个 rune
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// headRunes 保留字符串开头至多 n 个 rune
func headRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
