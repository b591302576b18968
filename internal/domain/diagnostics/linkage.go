package diagnostics

// Rule names reported by MatchResult, in precedence order.
const (
	RuleBasedOn     = "based-on"
	RuleCode        = "code"
	RuleText        = "text"
	RuleCodeDisplay = "code-display"
)

type resultRule struct {
	name  string
	match func(o *Order, r *ResultRecord) bool
}

// resultRules is evaluated top to bottom per record; the first hit wins.
var resultRules = []resultRule{
	{RuleBasedOn, func(o *Order, r *ResultRecord) bool {
		return r.BasedOnRef != nil && o.refersTo(*r.BasedOnRef)
	}},
	{RuleCode, func(o *Order, r *ResultRecord) bool {
		return o.CodeValue != "" && r.CodeText == o.CodeValue
	}},
	{RuleText, func(o *Order, r *ResultRecord) bool {
		return o.CodeText != "" && r.CodeText == o.CodeText
	}},
	{RuleCodeDisplay, func(o *Order, r *ResultRecord) bool {
		return o.CodeDisplay != "" && r.CodeText == o.CodeDisplay
	}},
}

// MatchResult reports the first rule linking r to o.
func MatchResult(o *Order, r *ResultRecord) (string, bool) {
	if o == nil || r == nil {
		return "", false
	}
	for _, rule := range resultRules {
		if rule.match(o, r) {
			return rule.name, true
		}
	}
	return "", false
}

// ResolveResults returns the records linked to o, in input order. Records
// sharing a code or label with several orders match all of them.
func ResolveResults(o *Order, results []*ResultRecord) []*ResultRecord {
	out := make([]*ResultRecord, 0, len(results))
	for _, r := range results {
		if _, ok := MatchResult(o, r); ok {
			out = append(out, r)
		}
	}
	return out
}

// LinkedResult pairs a record with the rule that linked it.
type LinkedResult struct {
	Record    *ResultRecord `json:"record"`
	MatchedBy string        `json:"matched_by"`
}

func ResolveResultsWithRules(o *Order, results []*ResultRecord) []LinkedResult {
	out := make([]LinkedResult, 0, len(results))
	for _, r := range results {
		if rule, ok := MatchResult(o, r); ok {
			out = append(out, LinkedResult{Record: r, MatchedBy: rule})
		}
	}
	return out
}
