package kmod

import "strings"

// Outcome is how a failed module action is treated.
type Outcome int

const (
	// Retry is a transient failure; the action is attempted again.
	Retry Outcome = iota
	// Success means the module is already in the requested state.
	Success
	// Ignored is a failure that is logged as a warning and otherwise treated as success.
	Ignored
	// Builtin means the module is compiled into the kernel and cannot be unloaded.
	Builtin
	// Missing means the module does not exist on this system.
	Missing
)

func (o Outcome) String() string {
	switch o {
	case Retry:
		return "retry"
	case Success:
		return "success"
	case Ignored:
		return "ignored"
	case Builtin:
		return "builtin"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Rule maps tool output to an outcome. Output is trimmed before matching.
type Rule struct {
	Name    string
	Match   func(module, output string) bool
	Outcome Outcome
}

// Rules are evaluated in order; the first match wins and anything unmatched is retried.
var Rules = []Rule{
	{
		Name:    "not-loaded",
		Match:   func(_, out string) bool { return strings.HasSuffix(out, "is not currently loaded") },
		Outcome: Success,
	},
	{
		Name:    "builtin",
		Match:   func(_, out string) bool { return strings.HasSuffix(out, "is builtin.") },
		Outcome: Builtin,
	},
	{
		Name:    "permission-denied",
		Match:   func(_, out string) bool { return strings.HasSuffix(out, "Permission denied") },
		Outcome: Ignored,
	},
	{
		Name:    "not-found",
		Match:   func(module, out string) bool { return strings.Contains(out, "Module "+module+" not found") },
		Outcome: Missing,
	},
}

// Classify returns the outcome for a failed action on module that printed output, and the
// name of the rule that matched.
func Classify(module string, output []byte) (Outcome, string) {
	out := strings.TrimSpace(string(output))
	for _, rule := range Rules {
		if rule.Match(module, out) {
			return rule.Outcome, rule.Name
		}
	}
	return Retry, ""
}
