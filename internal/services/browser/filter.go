package browser

import (
	"strings"
)

// RequestFilter decides which subresource requests a session aborts
type RequestFilter struct {
	types map[string]bool
	hosts []string
}

// NewRequestFilter builds a filter from resource type names (image, font, media)
// and URL substrings. Matching is case-insensitive.
func NewRequestFilter(resourceTypes, hosts []string) *RequestFilter {
	f := &RequestFilter{types: make(map[string]bool)}
	for _, t := range resourceTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			f.types[t] = true
		}
	}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			f.hosts = append(f.hosts, h)
		}
	}
	return f
}

// Empty reports whether the filter never blocks
func (f *RequestFilter) Empty() bool {
	return f == nil || (len(f.types) == 0 && len(f.hosts) == 0)
}

// Blocked reports whether a request should be aborted. Documents are never blocked.
func (f *RequestFilter) Blocked(resourceType, rawURL string) bool {
	if f.Empty() {
		return false
	}
	resourceType = strings.ToLower(resourceType)
	if resourceType == "document" {
		return false
	}
	if f.types[resourceType] {
		return true
	}
	lower := strings.ToLower(rawURL)
	for _, h := range f.hosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}
