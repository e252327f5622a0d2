// Package recommend 提供基于情感的音乐推荐
package recommend

import (
	"storytune-api/internal/domain/entity"
)

// DefaultWeightTable 默认情感权重表
// 每个情感标签映射到 7 维音乐特征空间中的目标点，
// 维度顺序：acoustic, electronic, aggressive, relaxed, happy, sad, party。
func DefaultWeightTable() entity.WeightTable {
	return entity.WeightTable{
		entity.EmotionJoy:           {0.50, 0.50, 0.09, 0.91, 0.95, 0.05, 0.90},
		entity.EmotionSadness:       {0.82, 0.18, 0.14, 0.86, 0.05, 0.95, 0.05},
		entity.EmotionAnger:         {0.14, 0.86, 0.95, 0.05, 0.25, 0.75, 0.20},
		entity.EmotionAnxiety:       {0.22, 0.78, 0.92, 0.08, 0.17, 0.83, 0.10},
		entity.EmotionHurt:          {0.75, 0.25, 0.20, 0.80, 0.13, 0.88, 0.05},
		entity.EmotionEmbarrassment: {0.33, 0.67, 0.89, 0.11, 0.33, 0.67, 0.15},
	}
}
