package nlq

import "strings"

// DefaultFullTableKeywords are the trigger phrases for questions that
// need row-level data: enumerations, specific customers, per-entity
// breakdowns. Anything else is answered from the statistical summary.
var DefaultFullTableKeywords = []string{
	"list all", "show all", "give me all", "every customer",
	"which customers", "who are", "specific customer",
	"customer id", "customer with", "customers where",
	"find customer", "search for", "details about",
	"individual", "breakdown by customer",
}

// Router decides, per question, whether the full table or a statistical
// summary is sufficient prompt context. It is a static keyword
// classifier: no model call is spent on the routing decision itself, and
// a question the keyword list misses simply gets summary context.
type Router struct {
	keywords []string
}

// NewRouter builds a router over the given trigger phrases, matched
// case-insensitively. An empty list falls back to the defaults.
func NewRouter(keywords []string) *Router {
	if len(keywords) == 0 {
		keywords = DefaultFullTableKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &Router{keywords: lowered}
}

// NeedsFullTable reports whether the question requires full-table
// context.
func (r *Router) NeedsFullTable(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range r.keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
