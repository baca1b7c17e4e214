// Package tiers holds the compiled-in subscription catalog: tier identifiers,
// their quotas, feature flags and list prices, plus the ordering used to tell
// upgrades from downgrades.
//
// The catalog is immutable and safe for concurrent reads without locking.
package tiers

import (
	"fmt"
	"sort"
)

// Tier identifies a subscription plan.
type Tier string

const (
	Free             Tier = "free"
	DreamWeaver      Tier = "dream_weaver"
	MagicCircle      Tier = "magic_circle"
	EnchantedLibrary Tier = "enchanted_library"
)

// Unlimited marks a quota without a cap.
const Unlimited = -1

// Feature names a catalog feature flag.
type Feature string

const (
	FeatureWebVoiceOnly      Feature = "web_voice_only"
	FeatureDownloads         Feature = "downloads"
	FeatureBasicThemes       Feature = "basic_themes"
	FeatureFamilySharing     Feature = "family_sharing"
	FeaturePremiumThemes     Feature = "premium_themes"
	FeatureScheduledDelivery Feature = "scheduled_delivery"
	FeatureAnalytics         Feature = "analytics"
	FeaturePDFDownload       Feature = "pdf_download"
	FeatureMP3Download       Feature = "mp3_download"
	FeatureCharacterVoices   Feature = "character_voices"
	FeatureCustomThemes      Feature = "custom_themes"
	FeaturePrioritySupport   Feature = "priority_support"
	FeatureEarlyAccess       Feature = "early_access"
	FeatureGiftPerYear       Feature = "gift_per_year"
)

// Limits are the quotas and feature flags of a tier. Feature values are
// either bool or int.
type Limits struct {
	MonthlyStories       int             `json:"monthly_stories"`
	MonthlyPremiumVoices int             `json:"monthly_premium_voices"`
	MaxChildren          int             `json:"max_children"`
	MaxSavedStories      int             `json:"max_saved_stories"`
	Features             map[Feature]any `json:"features"`
}

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// String formats the amount as dollars, e.g. "$6.99".
func (m Money) String() string {
	return fmt.Sprintf("$%d.%02d", m.Amount/100, m.Amount%100)
}

func usd(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// Info is the display and pricing record of a tier.
type Info struct {
	Tier         Tier   `json:"tier"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	MonthlyPrice Money  `json:"monthly_price"`
	AnnualPrice  Money  `json:"annual_price"`
	Limits       Limits `json:"limits"`
}

type entry struct {
	rank int
	info Info
}

var catalog = map[Tier]entry{
	Free: {rank: 0, info: Info{
		Tier:        Free,
		Name:        "Free",
		Description: "A taste of bedtime magic",
		Limits: Limits{
			MonthlyStories:       3,
			MonthlyPremiumVoices: 0,
			MaxChildren:          2,
			MaxSavedStories:      5,
			Features: map[Feature]any{
				FeatureWebVoiceOnly: true,
			},
		},
	}},
	DreamWeaver: {rank: 1, info: Info{
		Tier:         DreamWeaver,
		Name:         "Dream Weaver",
		Description:  "More stories for growing imaginations",
		MonthlyPrice: usd(699),
		AnnualPrice:  usd(5999),
		Limits: Limits{
			MonthlyStories:       10,
			MonthlyPremiumVoices: 3,
			MaxChildren:          3,
			MaxSavedStories:      Unlimited,
			Features: map[Feature]any{
				FeatureDownloads:   true,
				FeatureBasicThemes: true,
			},
		},
	}},
	MagicCircle: {rank: 2, info: Info{
		Tier:         MagicCircle,
		Name:         "Magic Circle",
		Description:  "The whole family's favourite",
		MonthlyPrice: usd(1499),
		AnnualPrice:  usd(11999),
		Limits: Limits{
			MonthlyStories:       30,
			MonthlyPremiumVoices: 15,
			MaxChildren:          5,
			MaxSavedStories:      Unlimited,
			Features: map[Feature]any{
				FeatureDownloads:         true,
				FeatureBasicThemes:       true,
				FeatureFamilySharing:     2,
				FeaturePremiumThemes:     true,
				FeatureScheduledDelivery: true,
				FeatureAnalytics:         true,
				FeaturePDFDownload:       true,
				FeatureMP3Download:       true,
			},
		},
	}},
	EnchantedLibrary: {rank: 3, info: Info{
		Tier:         EnchantedLibrary,
		Name:         "Enchanted Library",
		Description:  "Unlimited families, every voice",
		MonthlyPrice: usd(2999),
		AnnualPrice:  usd(24999),
		Limits: Limits{
			MonthlyStories:       60,
			MonthlyPremiumVoices: 60,
			MaxChildren:          Unlimited,
			MaxSavedStories:      Unlimited,
			Features: map[Feature]any{
				FeatureDownloads:         true,
				FeatureBasicThemes:       true,
				FeatureFamilySharing:     4,
				FeaturePremiumThemes:     true,
				FeatureScheduledDelivery: true,
				FeatureAnalytics:         true,
				FeaturePDFDownload:       true,
				FeatureMP3Download:       true,
				FeatureCharacterVoices:   true,
				FeatureCustomThemes:      true,
				FeaturePrioritySupport:   true,
				FeatureEarlyAccess:       true,
				FeatureGiftPerYear:       1,
			},
		},
	}},
}

// Valid reports whether t is a catalog tier.
func (t Tier) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Paid reports whether t is a valid tier other than Free.
func (t Tier) Paid() bool {
	return t.Valid() && t != Free
}

// Parse converts untrusted input into a Tier.
func Parse(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("tiers: unknown tier %q", s)
	}
	return t, nil
}

func mustEntry(t Tier) entry {
	e, ok := catalog[t]
	if !ok {
		panic(fmt.Sprintf("tiers: unknown tier %q", t))
	}
	return e
}

// LimitsOf returns the quotas of t. It panics on a tier outside the catalog.
func LimitsOf(t Tier) Limits {
	return mustEntry(t).info.Limits
}

// InfoOf returns the catalog record of t. It panics on a tier outside the catalog.
func InfoOf(t Tier) Info {
	return mustEntry(t).info
}

// All returns every tier in rank order, lowest first.
func All() []Info {
	out := make([]Info, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		return RankOf(out[i].Tier) < RankOf(out[j].Tier)
	})
	return out
}

// FeatureValue returns the raw value of a feature flag.
func FeatureValue(t Tier, f Feature) (any, bool) {
	v, ok := LimitsOf(t).Features[f]
	return v, ok
}

// HasFeature reports whether the flag is set: true for bool flags, > 0 for numeric ones.
func HasFeature(t Tier, f Feature) bool {
	v, ok := FeatureValue(t, f)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val > 0
	default:
		return false
	}
}

// RankOf returns the position of t in the capability order.
func RankOf(t Tier) int {
	return mustEntry(t).rank
}

// IsUpgrade reports whether moving from a to b raises the rank.
func IsUpgrade(a, b Tier) bool {
	return RankOf(b) > RankOf(a)
}

// IsDowngrade reports whether moving from a to b lowers the rank.
func IsDowngrade(a, b Tier) bool {
	return RankOf(b) < RankOf(a)
}
