// Package catalog defines the static product taxonomy the bot tracks and
// classifies live products into it by name.
package catalog

import "strings"

// Category groups related product variants for display
type Category struct {
	Name     string
	Emoji    string
	Variants []string
}

// Categories is the ordered catalog taxonomy
var Categories = []Category{
	{Name: "Whey Protein", Emoji: "💪", Variants: []string{"Chocolate", "Unflavoured"}},
	{Name: "Protein Shakes", Emoji: "🥤", Variants: []string{"Chocolate", "Coffee", "Kesar", "Blueberry"}},
	{Name: "Protein Drinks", Emoji: "🥛", Variants: []string{"Milk", "Buttermilk", "Plain Lassi", "Rose Lassi"}},
	{Name: "Paneer", Emoji: "🧀", Variants: []string{"Regular"}},
}

// TrackedCollection is the upstream category filter used when fetching products
const TrackedCollection = "protein"

// Classify maps a product name to its catalog category and variant
func Classify(name string) (category, variant string) {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "whey protein"):
		if strings.Contains(lower, "chocolate") {
			return "Whey Protein", "Chocolate"
		}
		return "Whey Protein", "Unflavoured"

	case strings.Contains(lower, "milkshake") || strings.Contains(lower, "shake"):
		switch {
		case strings.Contains(lower, "chocolate"):
			return "Protein Shakes", "Chocolate"
		case strings.Contains(lower, "coffee"):
			return "Protein Shakes", "Coffee"
		case strings.Contains(lower, "blueberry"):
			return "Protein Shakes", "Blueberry"
		default:
			return "Protein Shakes", "Kesar"
		}

	case strings.Contains(lower, "paneer"):
		return "Paneer", "Regular"

	default:
		switch {
		case strings.Contains(lower, "buttermilk"):
			return "Protein Drinks", "Buttermilk"
		case strings.Contains(lower, "milk"):
			return "Protein Drinks", "Milk"
		case strings.Contains(lower, "rose lassi"):
			return "Protein Drinks", "Rose Lassi"
		default:
			return "Protein Drinks", "Plain Lassi"
		}
	}
}

// PackInfo extracts the "Pack of N" fragment from a product name, if present
func PackInfo(name string) string {
	if !strings.Contains(strings.ToLower(name), "pack of") {
		return ""
	}
	for _, part := range strings.Split(name, "|") {
		if strings.Contains(strings.ToLower(part), "pack of") {
			return strings.TrimSpace(part)
		}
	}
	return ""
}
