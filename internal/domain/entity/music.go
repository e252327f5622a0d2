// Package entity 定义领域实体
package entity

// 音乐情绪特征向量的固定维度顺序
const (
	FeatureAcoustic = iota
	FeatureElectronic
	FeatureAggressive
	FeatureRelaxed
	FeatureHappy
	FeatureSad
	FeatureParty

	FeatureDims = 7
)

// FeatureNames 固定顺序的维度名称
var FeatureNames = [FeatureDims]string{
	"acoustic", "electronic", "aggressive", "relaxed", "happy", "sad", "party",
}

// FeatureVector 7 维音乐情绪特征向量，各分量取值 [0,1]
type FeatureVector [FeatureDims]float64

// IsZero 检查是否为零向量
func (v FeatureVector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// MusicItem 音乐条目（运行时只读的参考数据）
type MusicItem struct {
	ID        string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	Title     string        `json:"title" gorm:"type:varchar(255);not null"`
	Artist    string        `json:"artist" gorm:"type:varchar(255);not null"`
	Features  FeatureVector `json:"features" gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt int64         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (MusicItem) TableName() string {
	return "music_items"
}

// MusicRef 章节落库的推荐音乐引用
type MusicRef struct {
	MusicID    string  `json:"music_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float64 `json:"similarity"`
}

// WeightTable 情感标签到目标音乐特征向量的静态映射
// 进程级不可变配置，启动时装载，请求期间不修改。
type WeightTable map[EmotionLabel]FeatureVector

// Complete 检查权重表是否覆盖全部 6 个标签
func (t WeightTable) Complete() bool {
	for _, label := range EmotionLabels() {
		if _, ok := t[label]; !ok {
			return false
		}
	}
	return true
}
