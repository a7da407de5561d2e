package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Render replaces every {{ key }} placeholder in tmpl with the string
// form of vars[key]. Placeholders whose key is not present in vars are
// left verbatim, so a flow author can see which variables never
// arrived. Rendering never fails.
func Render(tmpl string, vars map[string]any) string {
	if tmpl == "" || !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := vars[key]
		if !ok {
			return match
		}

		return fmt.Sprintf("%v", value)
	})
}
