package prompt

import (
	"regexp"
	"strings"

	"github.com/nikhilbhutani/promptvexity/internal/apperr"
)

var variablePattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render replaces {{variable}} placeholders in the template with values from
// vars. Every placeholder must have a value.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", apperr.New(apperr.Validation, "missing_variables",
			"missing template variables: "+strings.Join(missing, ", "))
	}

	result := variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		key := variablePattern.FindStringSubmatch(match)[1]
		return vars[key]
	})

	return result, nil
}

// ExtractVariables returns the variable names found in the templates in
// first-seen order.
func ExtractVariables(templates ...string) []string {
	seen := make(map[string]bool)
	vars := []string{}
	for _, tmpl := range templates {
		for _, m := range variablePattern.FindAllStringSubmatch(tmpl, -1) {
			if !seen[m[1]] {
				vars = append(vars, m[1])
				seen[m[1]] = true
			}
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range ExtractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
