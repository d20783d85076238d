package enums

import (
	"slices"
	"strings"
)

type ItemCategory string

const (
	ItemCategoryBooks       ItemCategory = "books"
	ItemCategoryElectronics ItemCategory = "electronics"
	ItemCategoryFurniture   ItemCategory = "furniture"
	ItemCategoryClothing    ItemCategory = "clothing"
	ItemCategoryStationery  ItemCategory = "stationery"
	ItemCategorySports      ItemCategory = "sports"
	ItemCategoryAppliances  ItemCategory = "appliances"
	ItemCategoryVehicles    ItemCategory = "vehicles"
	ItemCategoryOther       ItemCategory = "other"
)

var itemCategories = []ItemCategory{
	ItemCategoryBooks,
	ItemCategoryElectronics,
	ItemCategoryFurniture,
	ItemCategoryClothing,
	ItemCategoryStationery,
	ItemCategorySports,
	ItemCategoryAppliances,
	ItemCategoryVehicles,
	ItemCategoryOther,
}

func (c ItemCategory) String() string { return string(c) }

func (c ItemCategory) IsValid() bool {
	_, err := parse(itemCategories, "item category", string(c))
	return err == nil
}

// ParseItemCategory ignores case and surrounding space.
func ParseItemCategory(raw string) (ItemCategory, error) {
	return parse(itemCategories, "item category", strings.ToLower(strings.TrimSpace(raw)))
}

// ParseItemCategories parses a category set, dropping repeats and keeping
// first-seen order.
func ParseItemCategories(raw []string) ([]ItemCategory, error) {
	out := make([]ItemCategory, 0, len(raw))
	for _, value := range raw {
		category, err := ParseItemCategory(value)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, category) {
			out = append(out, category)
		}
	}
	return out, nil
}
