package model

// The categories that get a bucket on the listing page. Any other value is
// stored as-is but never displayed in a group.
const (
	CategoryAppetizer = "Appetizer"
	CategoryMain      = "Main"
	CategoryDessert   = "Dessert"
	CategoryDrink     = "Drink"
)

// CategoryGroup is one labelled bucket of the grouped listing.
type CategoryGroup struct {
	Label    string
	Category string
	Recipes  []Recipe
}

// categoryOrder fixes both the bucket order and the plural labels.
var categoryOrder = []struct {
	category string
	label    string
}{
	{CategoryAppetizer, "Appetizers"},
	{CategoryMain, "Mains"},
	{CategoryDessert, "Desserts"},
	{CategoryDrink, "Drinks"},
}

// Categories returns the displayable categories in bucket order, for the
// form's select box.
func Categories() []string {
	out := make([]string, len(categoryOrder))
	for i, c := range categoryOrder {
		out[i] = c.category
	}
	return out
}

// GroupByCategory partitions recipes into the four fixed buckets. The input
// order is preserved inside each bucket, so callers pass recipes already
// sorted by title. All four buckets are always returned, possibly empty.
func GroupByCategory(recipes []Recipe) []CategoryGroup {
	groups := make([]CategoryGroup, len(categoryOrder))
	index := make(map[string]int, len(categoryOrder))
	for i, c := range categoryOrder {
		groups[i] = CategoryGroup{Label: c.label, Category: c.category, Recipes: []Recipe{}}
		index[c.category] = i
	}

	for _, r := range recipes {
		i, ok := index[r.Category]
		if !ok {
			continue
		}
		groups[i].Recipes = append(groups[i].Recipes, r)
	}
	return groups
}
