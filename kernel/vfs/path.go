package vfs

import "strings"

// ResolveRelativePath produces a canonical absolute path from cwd and path,
// tokenizing on '/' and resolving '.' and '..' without ascending past root.
func ResolveRelativePath(cwd, path string) string {
	base := cwd
	if strings.HasPrefix(path, "/") {
		base = "/"
	}

	parts := make([]string, 0, 8)
	for _, tok := range strings.Split(base, "/") {
		if tok != "" {
			parts = append(parts, tok)
		}
	}
	for _, tok := range strings.Split(path, "/") {
		switch tok {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, tok)
		}
	}

	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}
