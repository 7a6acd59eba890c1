package models

import (
	"github.com/Ramsey-B/sage/pkg/errors"
)

// Category classifies what a weighed box contains. The set is closed; totals
// columns on the session row exist for exactly these five values.
type Category string

const (
	CategoryRunner       Category = "Runner"
	CategorySapuan       Category = "Sapuan"
	CategoryPurging      Category = "Purging"
	CategoryDefect       Category = "Defect"
	CategoryFinishedGood Category = "Finished Good"
)

// categoryKeys maps each category to the suffix of its totals columns.
// "Finished Good" is abbreviated to "fg"; the others are the lower-cased,
// space-replaced category name.
var categoryKeys = map[Category]string{
	CategoryRunner:       "runner",
	CategorySapuan:       "sapuan",
	CategoryPurging:      "purging",
	CategoryDefect:       "defect",
	CategoryFinishedGood: "fg",
}

// Categories returns the five fixed categories in display order.
func Categories() []Category {
	return []Category{
		CategoryRunner,
		CategorySapuan,
		CategoryPurging,
		CategoryDefect,
		CategoryFinishedGood,
	}
}

// ParseCategory validates a raw category string against the closed set.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if _, ok := categoryKeys[c]; !ok {
		return "", errors.NewValidationError("unknown category '%s'", raw)
	}
	return c, nil
}

// TotalKey returns the totals-column suffix for the category.
func (c Category) TotalKey() string {
	return categoryKeys[c]
}

func (c Category) String() string {
	return string(c)
}
