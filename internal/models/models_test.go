package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		points int
		want   PerformanceTier
	}{
		{0, TierBronze},
		{9, TierBronze},
		{10, TierSilver},
		{24, TierSilver},
		{25, TierGold},
		{49, TierGold},
		{50, TierPlatinum},
		{500, TierPlatinum},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.points), "points=%d", tt.points)
	}
}

func TestLetter_Merge(t *testing.T) {
	completed := LetterCompleted
	final := "Final text"
	l := Letter{ID: "1", Status: LetterReviewing, AIGeneratedContent: "draft", Title: "t"}

	merged := l.Merge(LetterUpdate{Status: &completed, FinalContent: &final})

	assert.Equal(t, LetterCompleted, merged.Status)
	assert.Equal(t, "Final text", merged.Body())
	assert.Equal(t, "t", merged.Title)
	assert.Equal(t, LetterReviewing, l.Status, "original must not change")
	assert.Equal(t, "draft", l.Body())
}

func TestQuote_AmountCents(t *testing.T) {
	q := Quote{FinalPrice: decimal.RequireFromString("239.20")}
	assert.Equal(t, int64(23920), q.AmountCents())
}

func TestAddress_WithDefaults(t *testing.T) {
	assert.Equal(t, "USA", Address{}.WithDefaults().Country)
	assert.Equal(t, "Canada", Address{Country: "Canada"}.WithDefaults().Country)
}

func TestUserSubscription_HasCredit(t *testing.T) {
	var nilSub *UserSubscription
	assert.False(t, nilSub.HasCredit())
	assert.False(t, (&UserSubscription{Status: SubscriptionActive}).HasCredit())
	assert.False(t, (&UserSubscription{Status: SubscriptionCancelled, LettersRemaining: 3}).HasCredit())
	assert.True(t, (&UserSubscription{Status: SubscriptionActive, LettersRemaining: 1}).HasCredit())
}
