package remotetool

import "strings"

// Separator joins an endpoint name and a tool name into a namespaced id.
// Endpoint names are normalized so the separator never appears in them,
// which keeps parsing unambiguous.
const Separator = "__"

// NormalizeName lowercases an endpoint name and maps anything outside
// [a-z0-9-] to a single hyphen. Runs of underscores collapse so the
// separator cannot be forged by an endpoint name.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// FormatToolID builds the namespaced id for a tool on an endpoint.
func FormatToolID(endpoint, tool string) string {
	return NormalizeName(endpoint) + Separator + tool
}

// ParseToolID splits a namespaced id back into endpoint and tool names.
// It splits on the first separator; tool names may contain the separator
// themselves. Returns false for ids with no separator or an empty side.
func ParseToolID(id string) (endpoint, tool string, ok bool) {
	idx := strings.Index(id, Separator)
	if idx <= 0 || idx+len(Separator) >= len(id) {
		return "", "", false
	}
	return id[:idx], id[idx+len(Separator):], true
}

// IsRemoteID reports whether id carries the endpoint namespace marker.
func IsRemoteID(id string) bool {
	_, _, ok := ParseToolID(id)
	return ok
}
