package core

import "strings"

// Category is one of the fixed expense classification codes.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryEntertainment Category = "entertainment"
	CategoryBills         Category = "bills"
	CategoryShopping      Category = "shopping"
	CategoryHealth        Category = "health"
	CategoryOther         Category = "other"
)

// DefaultCategory is preselected in the add form.
const DefaultCategory = CategoryFood

// CategoryInfo holds the display attributes of a category.
type CategoryInfo struct {
	Code       Category
	Label      string
	Emoji      string
	BarClass   string // progress bar fill
	BadgeClass string // list badge
	TermColor  string // ANSI 256 color for terminal output
}

var categoryTable = []CategoryInfo{
	{CategoryFood, "Food & Dining", "🍔", "bg-orange-500", "bg-orange-100 text-orange-700", "208"},
	{CategoryTransport, "Transport", "🚗", "bg-blue-500", "bg-blue-100 text-blue-700", "33"},
	{CategoryEntertainment, "Entertainment", "🎬", "bg-purple-500", "bg-purple-100 text-purple-700", "135"},
	{CategoryBills, "Bills & Utilities", "💡", "bg-yellow-500", "bg-yellow-100 text-yellow-700", "220"},
	{CategoryShopping, "Shopping", "🛍️", "bg-pink-500", "bg-pink-100 text-pink-700", "205"},
	{CategoryHealth, "Health & Fitness", "💊", "bg-green-500", "bg-green-100 text-green-700", "40"},
	{CategoryOther, "Other", "📌", "bg-slate-500", "bg-slate-100 text-slate-700", "245"},
}

var categoryIndex = func() map[Category]int {
	m := make(map[Category]int, len(categoryTable))
	for i, c := range categoryTable {
		m[c.Code] = i
	}
	return m
}()

// Categories returns the registry in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryTable))
	copy(out, categoryTable)
	return out
}

// LookupCategory returns the registry entry for code.
func LookupCategory(code Category) (CategoryInfo, bool) {
	i, ok := categoryIndex[code]
	if !ok {
		return CategoryInfo{}, false
	}
	return categoryTable[i], true
}

// ParseCategory validates a category code.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categoryIndex[c]
	return ok
}

// Info returns the display attributes, falling back to Other for unknown codes.
func (c Category) Info() CategoryInfo {
	if info, ok := LookupCategory(c); ok {
		return info
	}
	info, _ := LookupCategory(CategoryOther)
	return info
}

func (c Category) String() string {
	return string(c)
}
