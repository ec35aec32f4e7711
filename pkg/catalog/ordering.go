package catalog

import "sort"

// NullTier is the sentinel for price points carrying no pricing tier.
// Empty tier strings are normalized to it on the way in.
const NullTier = "NULL_TIER"

// NormalizeTier maps an absent tier to the NullTier sentinel.
func NormalizeTier(tier string) string {
	if tier == "" {
		return NullTier
	}
	return tier
}

// currencyPriority pins the majors to the front of every currency listing.
var currencyPriority = map[string]int{
	"USD": 0,
	"CAD": 1,
	"GBP": 2,
	"EUR": 3,
	"AUD": 4,
	"HKD": 5,
	"INR": 6,
	"SGD": 7,
	"CNY": 8,
}

// tierPriority pins the known tiers; NullTier always leads.
var tierPriority = map[string]int{
	NullTier:     0,
	"STAFF":      1,
	"GOVERNMENT": 2,
	"NONPROFIT":  3,
	"EDUCATION":  4,
}

// CompareCurrencies orders by the fixed priority list, then alphabetically.
func CompareCurrencies(a, b string) int {
	pa, oka := currencyPriority[a]
	pb, okb := currencyPriority[b]
	switch {
	case oka && okb:
		return pa - pb
	case oka:
		return -1
	case okb:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareTiers orders NullTier first, then the known tiers, then the rest
// alphabetically.
func CompareTiers(a, b string) int {
	pa, oka := tierPriority[a]
	pb, okb := tierPriority[b]
	switch {
	case oka && okb:
		return pa - pb
	case oka:
		return -1
	case okb:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortCurrencies sorts in place using CompareCurrencies.
func SortCurrencies(currencies []string) {
	sort.SliceStable(currencies, func(i, j int) bool {
		return CompareCurrencies(currencies[i], currencies[j]) < 0
	})
}

// SortTiers sorts in place using CompareTiers.
func SortTiers(tiers []string) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return CompareTiers(tiers[i], tiers[j]) < 0
	})
}
