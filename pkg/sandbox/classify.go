package sandbox

import "strings"

// Category labels the likely failure class of an execution. The
// classification is a post-hoc keyword heuristic feeding the reflecting
// phase's prompt; it is advisory, never authoritative.
type Category string

const (
	CategorySyntax    Category = "syntax"
	CategoryImport    Category = "import"
	CategoryAttribute Category = "attribute"
	CategoryName      Category = "name"
	CategoryRuntime   Category = "runtime"
)

// categoryKeywords in match order: earlier rows win.
//
//nolint:gochecknoglobals // fixed keyword table
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategorySyntax, []string{"syntaxerror", "indentationerror", "invalid syntax", "unexpected indent"}},
	{CategoryImport, []string{"modulenotfounderror", "importerror", "no module named", "cannot import"}},
	{CategoryAttribute, []string{"attributeerror", "has no attribute", "object is not callable"}},
	{CategoryName, []string{"nameerror", "is not defined", "undefined variable"}},
}

// Classify scans error text for category keywords, labeling everything
// unmatched as a runtime failure.
func Classify(errorText string) Category {
	lowered := strings.ToLower(errorText)
	for _, row := range categoryKeywords {
		for _, kw := range row.keywords {
			if strings.Contains(lowered, kw) {
				return row.category
			}
		}
	}
	return CategoryRuntime
}
