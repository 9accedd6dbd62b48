package domain

import "strings"

// Category is one entry of the closed category table.
type Category struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Display string `json:"display"`
	Color   string `json:"color"`
}

// DefaultCategoryID is substituted for unknown or missing categories.
const DefaultCategoryID = "figueira"

var categories = []Category{
	{ID: "teens", Label: "Teens", Display: "Célula Teens", Color: "bg-orange-500"},
	{ID: "figueira", Label: "Figueira", Display: "Célula Figueira", Color: "bg-purple-800"},
	{ID: "valentes", Label: "Valentes de Davi", Display: "Célula Valentes de Davi", Color: "bg-blue-900"},
}

// DayTokens are the weekday tokens offered by the day selector.
var DayTokens = []string{"terça", "quarta", "sexta", "sábado"}

// Categories returns a copy of the category table in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// LookupCategory finds a category by id after trimming and lower-casing it.
func LookupCategory(id string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(id))
	for _, c := range categories {
		if c.ID == key {
			return c, true
		}
	}
	return Category{}, false
}

// ResolveCategory looks up id and falls back to fallbackID on a miss.
// An unknown fallbackID resolves to DefaultCategoryID.
func ResolveCategory(id, fallbackID string) Category {
	if c, ok := LookupCategory(id); ok {
		return c
	}
	if c, ok := LookupCategory(fallbackID); ok {
		return c
	}
	c, _ := LookupCategory(DefaultCategoryID)
	return c
}
