package main

import "strings"

// shortName turns a qualified method name into Class.method, dropping the
// package and any parameter list.
func shortName(method string) string {
	// "com/example/App.process" → "App.process"
	// "com.example.App.process(int)" → "App.process"
	base := methodKey(method)
	parts := strings.Split(base, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "." + parts[len(parts)-1]
	}
	return base
}

func displayName(method string, fqn bool) string {
	if fqn {
		return strings.ReplaceAll(method, "/", ".")
	}
	return shortName(method)
}

// methodKey normalizes a method name from either a profile frame or an
// optimization log so the two can be joined.
func methodKey(method string) string {
	if i := strings.IndexByte(method, '('); i >= 0 {
		method = method[:i]
	}
	return strings.ReplaceAll(method, "/", ".")
}

func matchesMethod(method, pattern string) bool {
	return strings.Contains(methodKey(method), pattern) || strings.Contains(shortName(method), pattern)
}

func truncate(n, top int) int {
	if top > 0 && top < n {
		return top
	}
	return n
}
