package expressions

import (
	"sort"
	"strings"
)

// Variables prefixes every field with $<namespace>. so the result can be
// passed to Substitute, e.g. Variables("Member", {"Name": "Jo"}) yields
// {"$Member.Name": "Jo"}.
func Variables(namespace string, fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out["$"+namespace+"."+k] = v
	}
	return out
}

// Merge joins variable sets; later sets win.
func Merge(sets ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// Substitute replaces every token of vars found in tpl with its value.
// Replacement is literal and happens in a single pass: values are never
// scanned for tokens again. Longer tokens are tried first, so $Context.Title
// does not eat the start of $Context.TitleSuffix.
func Substitute(tpl string, vars map[string]string) string {
	if tpl == "" || len(vars) == 0 {
		return tpl
	}
	tokens := make([]string, 0, len(vars))
	for k := range vars {
		if k != "" {
			tokens = append(tokens, k)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	pairs := make([]string, 0, len(tokens)*2)
	for _, k := range tokens {
		pairs = append(pairs, k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
