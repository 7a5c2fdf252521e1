package events

// Category is the pipeline-level classification of an event.
type Category string

const (
	CategoryFocusChange    Category = "focus-change"
	CategoryNavigation     Category = "navigation"
	CategoryClick          Category = "click"
	CategorySessionStart   Category = "session-start"
	CategorySessionStop    Category = "session-stop"
	CategoryViewportResize Category = "viewport-resize"
	CategoryIgnored        Category = "ignored"
)

// Categories lists every category in reporting order.
var Categories = []Category{
	CategorySessionStart,
	CategorySessionStop,
	CategoryNavigation,
	CategoryClick,
	CategoryFocusChange,
	CategoryViewportResize,
	CategoryIgnored,
}

var categoryByType = map[string]Category{
	"viewportFocusChange": CategoryFocusChange,
	"URLChange":           CategoryNavigation,
	"click":               CategoryClick,
	"auxclick":            CategoryClick,
	"mouseClick":          CategoryClick,
	"started":             CategorySessionStart,
	"stopped":             CategorySessionStop,
	"viewportResize":      CategoryViewportResize,
}

// Classify returns the category of e. Every event, including nil, maps to
// exactly one category.
func Classify(e *Event) Category {
	if e == nil {
		return CategoryIgnored
	}
	if c, ok := categoryByType[e.Type()]; ok {
		return c
	}
	return CategoryIgnored
}

// CountByCategory tallies events per category.
func CountByCategory(evs []*Event) map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, e := range evs {
		counts[Classify(e)]++
	}
	return counts
}
