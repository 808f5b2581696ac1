package http

import "strings"

var htmlElementEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes s for use inside an HTML element. Only &, < and > are
// escaped, so the result is not safe inside attribute values.
func EscapeHTML(s string) string {
	return htmlElementEscaper.Replace(s)
}
