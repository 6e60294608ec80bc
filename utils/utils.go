package utils

import (
	"fmt"
	"strings"
)

func UrlQuery(s string) string { return strings.ReplaceAll(s, " ", "+") }

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// CleanSpaces collapses all runs of whitespace into single spaces.
func CleanSpaces(s string) string { return strings.Join(strings.Fields(s), " ") }
