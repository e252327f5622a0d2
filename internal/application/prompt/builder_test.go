package prompt

import (
	"errors"
	"strings"
	"testing"

	apperrors "storytune-api/pkg/errors"
)

func TestBuildUserMessageNeverTruncated(t *testing.T) {
	b := NewBuilder(100, 0.5)

	user := strings.Repeat("问", 80)
	in := &Input{
		UserMessage: user,
		PriorText:   strings.Repeat("史", 200),
		Evidence:    []string{strings.Repeat("证", 200)},
	}

	payload, err := b.Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(payload.Prompt, user) {
		t.Error("user message was truncated")
	}
	if payload.UsedRunes > 100 {
		t.Errorf("UsedRunes = %d exceeds budget 100", payload.UsedRunes)
	}
}

func TestBuildPromptTooLarge(t *testing.T) {
	b := NewBuilder(100, 0.5)

	_, err := b.Build(&Input{UserMessage: strings.Repeat("问", 101)})
	if !errors.Is(err, apperrors.ErrPromptTooLarge) {
		t.Errorf("expected ErrPromptTooLarge, got %v", err)
	}

	// 恰好等于预算不报错
	payload, err := b.Build(&Input{UserMessage: strings.Repeat("问", 100)})
	if err != nil {
		t.Fatalf("Build() at exact budget error = %v", err)
	}
	if payload.UsedRunes != 100 {
		t.Errorf("UsedRunes = %d, want 100", payload.UsedRunes)
	}
}

func TestBuildPriorTailKept(t *testing.T) {
	b := NewBuilder(100, 0.5)

	// 用户消息 40 rune，剩余 60，历史预算 30
	user := strings.Repeat("问", 40)
	prior := strings.Repeat("旧", 50) + strings.Repeat("新", 30)

	payload, err := b.Build(&Input{UserMessage: user, PriorText: prior})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !strings.Contains(payload.Prompt, strings.Repeat("新", 30)) {
		t.Error("prior tail was not kept")
	}
	if strings.Contains(payload.Prompt, "旧") {
		t.Error("prior head should have been dropped")
	}
}

func TestBuildEvidenceFitsRemainder(t *testing.T) {
	b := NewBuilder(100, 0.5)

	// 用户 40，历史 20（预算 30 但只有 20），证据剩 40
	in := &Input{
		Genre:       "fantasy",
		UserMessage: strings.Repeat("问", 40),
		PriorText:   strings.Repeat("史", 20),
		Evidence: []string{
			strings.Repeat("甲", 30),
			strings.Repeat("乙", 30),
			strings.Repeat("丙", 30),
		},
	}

	payload, err := b.Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// 第一条完整装入，第二条截断装入 10，第三条丢弃
	if !strings.Contains(payload.System, strings.Repeat("甲", 30)) {
		t.Error("first evidence piece missing")
	}
	if !strings.Contains(payload.System, strings.Repeat("乙", 10)) {
		t.Error("second evidence piece not partially kept")
	}
	if strings.Contains(payload.System, strings.Repeat("乙", 11)) {
		t.Error("second evidence piece exceeds remainder")
	}
	if strings.Contains(payload.System, "丙") {
		t.Error("third evidence piece should have been dropped")
	}
	if payload.UsedRunes != 100 {
		t.Errorf("UsedRunes = %d, want 100", payload.UsedRunes)
	}
}

func TestBuildSystemContainsGenre(t *testing.T) {
	b := NewBuilder(1000, 0.5)

	payload, err := b.Build(&Input{Genre: "mystery", UserMessage: "继续"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(payload.System, "mystery") {
		t.Error("system prompt does not mention the genre")
	}
}

func TestNewBuilderDefaults(t *testing.T) {
	tests := []struct {
		name       string
		budget     int
		share      float64
		wantBudget int
		wantShare  float64
	}{
		{"非法预算回退", 0, 0.5, 6000, 0.5},
		{"非法占比回退", 100, 1.5, 100, 0.5},
		{"零占比回退", 100, 0, 100, 0.5},
		{"合法参数保留", 200, 0.3, 200, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.budget, tt.share)
			if b.budgetRunes != tt.wantBudget || b.priorShare != tt.wantShare {
				t.Errorf("NewBuilder(%d, %f) = {%d, %f}, want {%d, %f}",
					tt.budget, tt.share, b.budgetRunes, b.priorShare, tt.wantBudget, tt.wantShare)
			}
		})
	}
}
