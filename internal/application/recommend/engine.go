// Package recommend 提供基于情感的音乐推荐
package recommend

import (
	"math"
	"sort"

	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
	"storytune-api/pkg/metrics"
)

// Recommendation 推荐结果
type Recommendation struct {
	Item       *entity.MusicItem
	Similarity float64
}

// Engine 推荐引擎
// 情感分布经权重表线性组合得到目标特征向量（不做归一化），
// 再按余弦相似度对曲库排序。
type Engine struct {
	table entity.WeightTable
	topN  int
}

// NewEngine 创建推荐引擎
func NewEngine(table entity.WeightTable, topN int) *Engine {
	if topN <= 0 {
		topN = 5
	}
	return &Engine{
		table: table,
		topN:  topN,
	}
}

// TargetVector 由情感分布计算目标特征向量
// target = Σ p(label) · W[label]；结果为零向量时返回 ErrDegenerateVector。
func (e *Engine) TargetVector(emotions entity.EmotionVector) (entity.FeatureVector, error) {
	var target entity.FeatureVector
	for _, label := range entity.EmotionLabels() {
		p := emotions.Get(label)
		if p == 0 {
			continue
		}
		weights := e.table[label]
		for i := 0; i < entity.FeatureDims; i++ {
			target[i] += p * weights[i]
		}
	}

	if target.IsZero() {
		return target, apperrors.ErrDegenerateVector
	}
	return target, nil
}

// Recommend 按情感分布推荐曲目
// 返回至多 topN 条，按相似度降序排列，同分按音乐 ID 升序保证结果确定。
func (e *Engine) Recommend(emotions entity.EmotionVector, candidates []*entity.MusicItem) ([]Recommendation, error) {
	target, err := e.TargetVector(emotions)
	if err != nil {
		return nil, err
	}

	metrics.RecommendationsTotal.WithLabelValues(string(emotions.Dominant())).Inc()

	result := make([]Recommendation, 0, len(candidates))
	for _, item := range candidates {
		result = append(result, Recommendation{
			Item:       item,
			Similarity: cosine(target, item.Features),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Similarity != result[j].Similarity {
			return result[i].Similarity > result[j].Similarity
		}
		return result[i].Item.ID < result[j].Item.ID
	})

	if len(result) > e.topN {
		result = result[:e.topN]
	}
	return result, nil
}

// cosine 余弦相似度；任一向量为零向量时相似度为 0
func cosine(a, b entity.FeatureVector) float64 {
	var dot, normA, normB float64
	for i := 0; i < entity.FeatureDims; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
