// Package entity 定义领域实体
package entity

// EmotionLabel 情感标签
type EmotionLabel string

// 固定的 6 个情感标签（闭集，分类服务输出以此为准）
const (
	EmotionJoy           EmotionLabel = "joy"
	EmotionSadness       EmotionLabel = "sadness"
	EmotionAnger         EmotionLabel = "anger"
	EmotionAnxiety       EmotionLabel = "anxiety"
	EmotionHurt          EmotionLabel = "hurt"
	EmotionEmbarrassment EmotionLabel = "embarrassment"
)

// EmotionLabels 返回固定顺序的标签列表
func EmotionLabels() []EmotionLabel {
	return []EmotionLabel{
		EmotionJoy,
		EmotionSadness,
		EmotionAnger,
		EmotionAnxiety,
		EmotionHurt,
		EmotionEmbarrassment,
	}
}

// IsValidEmotionLabel 检查标签是否属于闭集
func IsValidEmotionLabel(label EmotionLabel) bool {
	switch label {
	case EmotionJoy, EmotionSadness, EmotionAnger,
		EmotionAnxiety, EmotionHurt, EmotionEmbarrassment:
		return true
	}
	return false
}

// EmotionVector 情感向量
// 每个标签的概率相互独立（多标签），不要求总和为 1；缺失标签按 0 读取。
type EmotionVector map[EmotionLabel]float64

// Get 读取标签概率，缺失按 0
func (v EmotionVector) Get(label EmotionLabel) float64 {
	if v == nil {
		return 0
	}
	return v[label]
}

// IsZero 检查闭集内所有概率是否全为 0
func (v EmotionVector) IsZero() bool {
	for _, label := range EmotionLabels() {
		if v.Get(label) != 0 {
			return false
		}
	}
	return true
}

// Dominant 返回概率最高的标签
// 同分时取固定标签顺序中靠前者，保证结果确定。
func (v EmotionVector) Dominant() EmotionLabel {
	best := EmotionJoy
	bestProb := v.Get(EmotionJoy)
	for _, label := range EmotionLabels()[1:] {
		if p := v.Get(label); p > bestProb {
			best = label
			bestProb = p
		}
	}
	return best
}

// Clamp 将闭集内的概率收敛到 [0,1]，并丢弃闭集外的标签
func (v EmotionVector) Clamp() EmotionVector {
	out := make(EmotionVector, len(EmotionLabels()))
	for _, label := range EmotionLabels() {
		p := v.Get(label)
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		out[label] = p
	}
	return out
}
