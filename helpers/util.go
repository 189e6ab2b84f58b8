package helpers

import (
	"net/url"
	"regexp"
	"strings"
)

var numberRun = regexp.MustCompile(`\d+`)

// LastNumber returns the last run of digits in s, e.g. the listing id in
// "onListingClick(event, 123456);"
func LastNumber(s string) string {
	runs := numberRun.FindAllString(s, -1)
	if len(runs) == 0 {
		return ""
	}
	return runs[len(runs)-1]
}

// ResolveURL resolves ref against base; ref is returned as is when either fails to parse
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
