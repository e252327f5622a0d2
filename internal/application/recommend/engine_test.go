package recommend

import (
	"errors"
	"math"
	"testing"

	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
)

func TestTargetVector(t *testing.T) {
	e := NewEngine(DefaultWeightTable(), 5)

	t.Run("纯单一情感等于权重行", func(t *testing.T) {
		got, err := e.TargetVector(entity.EmotionVector{entity.EmotionJoy: 1.0})
		if err != nil {
			t.Fatalf("TargetVector() error = %v", err)
		}
		want := DefaultWeightTable()[entity.EmotionJoy]
		for i := 0; i < entity.FeatureDims; i++ {
			if math.Abs(got[i]-want[i]) > 1e-9 {
				t.Errorf("dim %d = %f, want %f", i, got[i], want[i])
			}
		}
	})

	t.Run("混合情感线性叠加不归一化", func(t *testing.T) {
		got, err := e.TargetVector(entity.EmotionVector{
			entity.EmotionJoy:     0.5,
			entity.EmotionSadness: 0.5,
		})
		if err != nil {
			t.Fatalf("TargetVector() error = %v", err)
		}
		table := DefaultWeightTable()
		for i := 0; i < entity.FeatureDims; i++ {
			want := 0.5*table[entity.EmotionJoy][i] + 0.5*table[entity.EmotionSadness][i]
			if math.Abs(got[i]-want) > 1e-9 {
				t.Errorf("dim %d = %f, want %f", i, got[i], want)
			}
		}
	})

	t.Run("零分布返回退化错误", func(t *testing.T) {
		_, err := e.TargetVector(entity.EmotionVector{})
		if !errors.Is(err, apperrors.ErrDegenerateVector) {
			t.Errorf("expected ErrDegenerateVector, got %v", err)
		}
	})
}

func TestRecommend(t *testing.T) {
	e := NewEngine(DefaultWeightTable(), 2)
	joyWeights := DefaultWeightTable()[entity.EmotionJoy]

	candidates := []*entity.MusicItem{
		{ID: "m-sad", Title: "Rainy", Features: entity.FeatureVector{0.8, 0.2, 0.1, 0.8, 0.05, 0.95, 0.05}},
		{ID: "m-joy", Title: "Sunny", Features: joyWeights},
		{ID: "m-party", Title: "Pulse", Features: entity.FeatureVector{0.1, 0.9, 0.3, 0.2, 0.8, 0.1, 0.95}},
	}

	got, err := e.Recommend(entity.EmotionVector{entity.EmotionJoy: 1.0}, candidates)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected topN=2 results, got %d", len(got))
	}
	// 特征与目标向量一致的曲目相似度为 1 且排第一
	if got[0].Item.ID != "m-joy" {
		t.Errorf("top result = %s, want m-joy", got[0].Item.ID)
	}
	if math.Abs(got[0].Similarity-1.0) > 1e-9 {
		t.Errorf("top similarity = %f, want 1.0", got[0].Similarity)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Errorf("results not sorted by similarity desc: %v", got)
	}
}

func TestRecommendTieBreakByID(t *testing.T) {
	e := NewEngine(DefaultWeightTable(), 5)
	features := DefaultWeightTable()[entity.EmotionJoy]

	candidates := []*entity.MusicItem{
		{ID: "m-b", Features: features},
		{ID: "m-a", Features: features},
	}

	got, err := e.Recommend(entity.EmotionVector{entity.EmotionJoy: 1.0}, candidates)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if got[0].Item.ID != "m-a" || got[1].Item.ID != "m-b" {
		t.Errorf("tie not broken by music ID asc: %s, %s", got[0].Item.ID, got[1].Item.ID)
	}
}

func TestRecommendEmptyCandidates(t *testing.T) {
	e := NewEngine(DefaultWeightTable(), 5)

	got, err := e.Recommend(entity.EmotionVector{entity.EmotionJoy: 1.0}, nil)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty results, got %v", got)
	}
}

func TestCosine(t *testing.T) {
	a := entity.FeatureVector{1, 0, 0, 0, 0, 0, 0}
	b := entity.FeatureVector{0, 1, 0, 0, 0, 0, 0}
	var zero entity.FeatureVector

	if got := cosine(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("cosine(a, a) = %f, want 1.0", got)
	}
	if got := cosine(a, b); got != 0 {
		t.Errorf("cosine(orthogonal) = %f, want 0", got)
	}
	if got := cosine(a, zero); got != 0 {
		t.Errorf("cosine(a, zero) = %f, want 0", got)
	}
}

func TestDefaultWeightTableComplete(t *testing.T) {
	if !DefaultWeightTable().Complete() {
		t.Error("default weight table does not cover all emotion labels")
	}
}
