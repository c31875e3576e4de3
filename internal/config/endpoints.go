package config

import "strings"

// ParseEndpoints turns a comma-separated list of worker addresses into
// endpoints.
//
// One pair of wrapping double quotes is stripped (a lone quote leaves
// nothing), entries are trimmed,
// empty entries are dropped, and repeated addresses are kept once in
// first-seen order.
func ParseEndpoints(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`)
	}

	seen := make(map[string]bool)
	var endpoints []string
	for _, part := range strings.Split(raw, ",") {
		ep := strings.TrimSpace(part)
		if ep == "" || seen[ep] {
			continue
		}
		seen[ep] = true
		endpoints = append(endpoints, ep)
	}
	return endpoints
}
