package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContributionTotal_RecomputedFromChildren(t *testing.T) {
	post := CrowdFundingPost{
		// the stored column disagrees with the children; the children win
		CurrentAmount: 9999,
		Contributions: []Contribution{
			{ContributorID: "u1", Amount: 250},
			{ContributorID: "u2", Amount: 100.50},
			{ContributorID: "u1", Amount: 49.50},
		},
	}

	assert.Equal(t, 400.0, post.ContributionTotal())
	assert.Equal(t, 3, post.ContributorCount())
}

func TestContributionTotal_NoContributions(t *testing.T) {
	post := CrowdFundingPost{CurrentAmount: 500}
	assert.Equal(t, 0.0, post.ContributionTotal())
	assert.Equal(t, 0, post.ContributorCount())
}

func TestIdentity_IsEmpty(t *testing.T) {
	assert.True(t, Identity{}.IsEmpty())
	assert.True(t, Identity{Email: "ghost@example.com"}.IsEmpty())
	assert.False(t, Identity{UID: "uid-1"}.IsEmpty())
}
