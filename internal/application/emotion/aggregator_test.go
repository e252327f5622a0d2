package emotion

import (
	"errors"
	"math"
	"testing"

	"storytune-api/internal/domain/entity"
	apperrors "storytune-api/pkg/errors"
)

func TestAggregateMean(t *testing.T) {
	turns := []*entity.Turn{
		{Emotion: entity.EmotionVector{entity.EmotionJoy: 0.8, entity.EmotionSadness: 0.2}},
		{Emotion: entity.EmotionVector{entity.EmotionJoy: 0.4}},
	}

	got, err := Aggregate(turns)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if math.Abs(got.Get(entity.EmotionJoy)-0.6) > 1e-9 {
		t.Errorf("joy = %f, want 0.6", got.Get(entity.EmotionJoy))
	}
	// 第二条缺失的标签按 0 参与平均
	if math.Abs(got.Get(entity.EmotionSadness)-0.1) > 1e-9 {
		t.Errorf("sadness = %f, want 0.1", got.Get(entity.EmotionSadness))
	}
	if got.Get(entity.EmotionAnger) != 0 {
		t.Errorf("anger = %f, want 0", got.Get(entity.EmotionAnger))
	}
}

func TestAggregateSkipsUnclassified(t *testing.T) {
	turns := []*entity.Turn{
		{Emotion: entity.EmotionVector{entity.EmotionJoy: 1.0}},
		{Emotion: nil},
		{Emotion: entity.EmotionVector{}},
	}

	got, err := Aggregate(turns)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	// 未分类轮次不参与计算，均值按 1 条计算
	if got.Get(entity.EmotionJoy) != 1.0 {
		t.Errorf("joy = %f, want 1.0", got.Get(entity.EmotionJoy))
	}
}

func TestAggregateNoEmotionData(t *testing.T) {
	tests := []struct {
		name  string
		turns []*entity.Turn
	}{
		{"空轮次列表", nil},
		{"全部未分类", []*entity.Turn{{Emotion: nil}, {Emotion: nil}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.turns)
			if !errors.Is(err, apperrors.ErrNoEmotionData) {
				t.Errorf("expected ErrNoEmotionData, got %v", err)
			}
		})
	}
}
