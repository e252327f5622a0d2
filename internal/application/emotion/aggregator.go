// Package emotion 提供章节情感聚合
package emotion

import (
	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
)

// Aggregate 计算章节情感分布
// 对每个标签取已附带情感向量的轮次的算术平均；未分类的轮次不参与计算。
// 没有任何轮次带向量时返回 ErrNoEmotionData，调用方延迟后可重试。
func Aggregate(turns []*entity.Turn) (entity.EmotionVector, error) {
	count := 0
	sum := make(entity.EmotionVector, len(entity.EmotionLabels()))

	for _, turn := range turns {
		if !turn.HasEmotion() {
			continue
		}
		count++
		for _, label := range entity.EmotionLabels() {
			sum[label] += turn.Emotion.Get(label)
		}
	}

	if count == 0 {
		return nil, apperrors.ErrNoEmotionData
	}

	for _, label := range entity.EmotionLabels() {
		sum[label] /= float64(count)
	}
	return sum, nil
}
