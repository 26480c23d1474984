package domain

// Category is a selectable transaction category.
type Category struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// GoalsCategory marks transfers between an account and its goals.
const GoalsCategory = "goals"

// AllowanceCategory marks allowance payments.
const AllowanceCategory = "allowance"

// OtherCategory is the fallback in both catalogs.
const OtherCategory = "other"

// EarnCategories are offered for money in.
var EarnCategories = []Category{
	{Slug: "allowance", Label: "Allowance", Icon: "💸"},
	{Slug: "chores", Label: "Chores", Icon: "🧹"},
	{Slug: "gift", Label: "Gift", Icon: "🎁"},
	{Slug: "sell", Label: "Sold Item", Icon: "🏷️"},
	{Slug: "interest", Label: "Interest", Icon: "📈"},
	{Slug: "other", Label: "Other", Icon: "💰"},
}

// SpendCategories are offered for money out.
var SpendCategories = []Category{
	{Slug: "food", Label: "Food/Treats", Icon: "🍔"},
	{Slug: "toys", Label: "Toys", Icon: "🧸"},
	{Slug: "fun", Label: "Entertainment", Icon: "🎬"},
	{Slug: "clothing", Label: "Clothing", Icon: "👕"},
	{Slug: "electronics", Label: "Electronics", Icon: "🎮"},
	{Slug: "other", Label: "Other", Icon: "💸"},
}

// Categories returns the catalog for money in (earn) or money out.
func Categories(earn bool) []Category {
	if earn {
		return EarnCategories
	}
	return SpendCategories
}

// IsCategory reports whether slug is in the earn or spend catalog.
func IsCategory(slug string, earn bool) bool {
	for _, c := range Categories(earn) {
		if c.Slug == slug {
			return true
		}
	}
	return false
}
