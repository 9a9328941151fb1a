package tabby

import "strings"

// Tabby scores checkout risk partly on item category, so store categories are
// mapped onto its retail taxonomy instead of being passed through raw.
var categoryTaxonomy = map[string]string{
	"furniture":   "Home & Furniture",
	"lighting":    "Home & Furniture",
	"decor":       "Home Decor",
	"accessories": "Home Decor",
	"textiles":    "Home Decor",
	"rugs":        "Home Decor",
	"paint":       "Home Improvement",
	"wallpaper":   "Home Improvement",
	"package":     "Services",
	"design":      "Services",
}

const fallbackCategory = "Home & Garden"

func taxonomyCategory(storeCategory string) string {
	key := strings.ToLower(strings.TrimSpace(storeCategory))
	if mapped, ok := categoryTaxonomy[key]; ok {
		return mapped
	}
	return fallbackCategory
}
