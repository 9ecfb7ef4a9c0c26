package github

import (
	"regexp"
	"strings"
)

// linkRegex matches Link header entries: <url>; rel="type".
var linkRegex = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ParseLinks extracts all URLs from a Link header by relationship type.
func ParseLinks(linkHeader string) map[string]string {
	links := make(map[string]string)
	for _, part := range strings.Split(linkHeader, ",") {
		matches := linkRegex.FindStringSubmatch(strings.TrimSpace(part))
		if len(matches) == 3 {
			links[matches[2]] = matches[1]
		}
	}
	return links
}

// ParseNextLink extracts the "next" URL from a Link header.
// Returns empty string if there is no next page.
func ParseNextLink(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	return ParseLinks(linkHeader)["next"]
}
