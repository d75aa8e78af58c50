package mappers

import "strings"

// Claims is a tree of token claims. Nested objects are map[string]any.
type Claims map[string]any

// SplitPath splits a claim path on dots. A backslash escapes a dot that belongs to the name.
func SplitPath(path string) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 0; i < len(path); i++ {
		switch {
		case path[i] == '\\' && i+1 < len(path) && path[i+1] == '.':
			cur.WriteByte('.')
			i++
		case path[i] == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(path[i])
		}
	}
	parts = append(parts, cur.String())

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Set writes value at the dotted claim path, one nesting level per dot. Intermediate
// objects are created on demand; a non-object value in the way is replaced.
func (c Claims) Set(path string, value any) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}
	setPath(c, segments, value)
}

func setPath(node map[string]any, segments []string, value any) {
	if len(segments) == 1 {
		node[segments[0]] = value
		return
	}
	child, ok := node[segments[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		node[segments[0]] = child
	}
	setPath(child, segments[1:], value)
}

// Get reads the value at a dotted claim path.
func (c Claims) Get(path string) (any, bool) {
	var node any = map[string]any(c)
	for _, s := range SplitPath(path) {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[s]; !ok {
			return nil, false
		}
	}
	return node, true
}
