package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogInvariants(t *testing.T) {
	require.NoError(t, validate())
}

func TestLimitsOf(t *testing.T) {
	tests := []struct {
		tier     Tier
		stories  int
		voices   int
		children int
		saved    int
	}{
		{Free, 3, 0, 2, 5},
		{DreamWeaver, 10, 3, 3, Unlimited},
		{MagicCircle, 30, 15, 5, Unlimited},
		{EnchantedLibrary, 60, 60, Unlimited, Unlimited},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			l := LimitsOf(tt.tier)
			assert.Equal(t, tt.stories, l.MonthlyStories)
			assert.Equal(t, tt.voices, l.MonthlyPremiumVoices)
			assert.Equal(t, tt.children, l.MaxChildren)
			assert.Equal(t, tt.saved, l.MaxSavedStories)
		})
	}
}

func TestLimitsOf_UnknownTierPanics(t *testing.T) {
	assert.Panics(t, func() { LimitsOf(Tier("platinum")) })
}

func TestInfoOf(t *testing.T) {
	info := InfoOf(MagicCircle)
	assert.Equal(t, "Magic Circle", info.Name)
	assert.Equal(t, int64(1499), info.MonthlyPrice.Amount)
	assert.Equal(t, int64(11999), info.AnnualPrice.Amount)
	assert.Equal(t, "$14.99", info.MonthlyPrice.String())
	assert.Equal(t, int64(0), InfoOf(Free).MonthlyPrice.Amount)
}

func TestAllInRankOrder(t *testing.T) {
	all := All()
	require.Len(t, all, 4)
	assert.Equal(t, []Tier{Free, DreamWeaver, MagicCircle, EnchantedLibrary},
		[]Tier{all[0].Tier, all[1].Tier, all[2].Tier, all[3].Tier})
}

func TestFeatures(t *testing.T) {
	assert.True(t, HasFeature(Free, FeatureWebVoiceOnly))
	assert.False(t, HasFeature(Free, FeatureDownloads))
	assert.True(t, HasFeature(DreamWeaver, FeatureDownloads))
	assert.True(t, HasFeature(MagicCircle, FeatureFamilySharing))
	assert.False(t, HasFeature(MagicCircle, FeatureCharacterVoices))
	assert.True(t, HasFeature(EnchantedLibrary, FeatureCharacterVoices))

	v, ok := FeatureValue(MagicCircle, FeatureFamilySharing)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = FeatureValue(EnchantedLibrary, FeatureGiftPerYear)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = FeatureValue(Free, FeatureGiftPerYear)
	assert.False(t, ok)
}

func TestPaidFeaturesAreCumulative(t *testing.T) {
	paid := []Tier{DreamWeaver, MagicCircle, EnchantedLibrary}
	for i := 1; i < len(paid); i++ {
		lower, higher := paid[i-1], paid[i]
		for f := range LimitsOf(lower).Features {
			if HasFeature(lower, f) {
				assert.True(t, HasFeature(higher, f), "%s should keep %s from %s", higher, f, lower)
			}
		}
	}
	assert.True(t, HasFeature(MagicCircle, FeatureBasicThemes))
	assert.True(t, HasFeature(EnchantedLibrary, FeatureMP3Download))
}

func TestRankOrdering(t *testing.T) {
	all := []Tier{Free, DreamWeaver, MagicCircle, EnchantedLibrary}
	for _, a := range all {
		for _, b := range all {
			if a == b {
				assert.False(t, IsUpgrade(a, b))
				assert.False(t, IsDowngrade(a, b))
				continue
			}
			assert.NotEqual(t, IsUpgrade(a, b), IsDowngrade(a, b), "%s -> %s", a, b)
			assert.Equal(t, RankOf(b) > RankOf(a), IsUpgrade(a, b))
		}
	}
	assert.True(t, IsUpgrade(Free, DreamWeaver))
	assert.True(t, IsDowngrade(EnchantedLibrary, MagicCircle))
}

func TestParse(t *testing.T) {
	tier, err := Parse("magic_circle")
	require.NoError(t, err)
	assert.Equal(t, MagicCircle, tier)

	_, err = Parse("premium")
	assert.Error(t, err)

	assert.True(t, DreamWeaver.Paid())
	assert.False(t, Free.Paid())
	assert.False(t, Tier("").Paid())
}

func TestLimits_Limit(t *testing.T) {
	l := LimitsOf(DreamWeaver)
	assert.Equal(t, 10, l.Limit(MonthlyStories))
	assert.Equal(t, 3, l.Limit(MonthlyPremiumVoices))
	assert.Equal(t, Unlimited, l.Limit(MaxSavedStories))
	assert.Panics(t, func() { l.Limit(Quota("bogus")) })
}
