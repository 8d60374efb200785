package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingVariables is returned when a prompt references a variable the
// request does not supply.
var ErrMissingVariables = errors.New("missing template variables")

var variablePattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render replaces {{variable}} placeholders in tmpl with values from vars.
func Render(tmpl string, vars map[string]string) (string, error) {
	if missing := missingVariables(tmpl, vars); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := variablePattern.FindStringSubmatch(match)[1]
		return vars[key]
	}), nil
}

// ExtractVariables returns the distinct variable names in tmpl, in order of
// first appearance.
func ExtractVariables(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			names = append(names, m[1])
			seen[m[1]] = true
		}
	}
	return names
}

func missingVariables(tmpl string, vars map[string]string) []string {
	var missing []string
	for _, v := range ExtractVariables(tmpl) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
