package catalog

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		category string
		variant  string
	}{
		{"Amul Whey Protein | 32 g | Pack of 30 Sachets", "Whey Protein", "Unflavoured"},
		{"Amul Chocolate Whey Protein | Pack of 30 Sachets", "Whey Protein", "Chocolate"},
		{"Amul High Protein Chocolate Milkshake | Pack of 8", "Protein Shakes", "Chocolate"},
		{"Amul Kool Protein Milkshake | Coffee | Pack of 8", "Protein Shakes", "Coffee"},
		{"Amul Kool Protein Milkshake | Kesar | Pack of 30", "Protein Shakes", "Kesar"},
		{"Amul High Protein Blueberry Shake | Pack of 30", "Protein Shakes", "Blueberry"},
		{"Amul High Protein Paneer | Pack of 2", "Paneer", "Regular"},
		{"Amul High Protein Milk | Pack of 8", "Protein Drinks", "Milk"},
		{"Amul High Protein Buttermilk | Pack of 30", "Protein Drinks", "Buttermilk"},
		{"Amul High Protein Rose Lassi | Pack of 30", "Protein Drinks", "Rose Lassi"},
		{"Amul High Protein Plain Lassi | Pack of 30", "Protein Drinks", "Plain Lassi"},
	}

	for _, tc := range cases {
		category, variant := Classify(tc.name)
		if category != tc.category || variant != tc.variant {
			t.Errorf("Classify(%q) = %q/%q, want %q/%q", tc.name, category, variant, tc.category, tc.variant)
		}
	}
}

func TestPackInfo(t *testing.T) {
	if got := PackInfo("Amul Whey Protein | 32 g | Pack of 30 Sachets"); got != "Pack of 30 Sachets" {
		t.Fatalf("PackInfo = %q, want %q", got, "Pack of 30 Sachets")
	}
	if got := PackInfo("Amul High Protein Milk"); got != "" {
		t.Fatalf("PackInfo on plain name = %q, want empty", got)
	}
}

func TestCategoriesCoverAllClassifications(t *testing.T) {
	known := make(map[string]map[string]bool)
	for _, c := range Categories {
		known[c.Name] = make(map[string]bool)
		for _, v := range c.Variants {
			known[c.Name][v] = true
		}
	}

	names := []string{
		"Whey Protein", "Chocolate Whey Protein", "Chocolate Milkshake",
		"Coffee Shake", "Kesar Milkshake", "Blueberry Shake", "Paneer",
		"High Protein Milk", "Buttermilk", "Rose Lassi", "Plain Lassi",
	}
	for _, name := range names {
		category, variant := Classify(name)
		variants, ok := known[category]
		if !ok {
			t.Errorf("Classify(%q) produced unknown category %q", name, category)
			continue
		}
		if !variants[variant] {
			t.Errorf("Classify(%q) produced variant %q outside category %q", name, variant, category)
		}
	}
}
