package vkapi

import "strings"

// CleanGroupIdentifier normalizes an operator-supplied group reference (full
// URL, screen name or numeric id) into the identifier groups.getById
// accepts. Returns "" when nothing usable remains.
func CleanGroupIdentifier(input string) string {
	id := strings.TrimSpace(input)
	if id == "" {
		return ""
	}

	id = strings.TrimPrefix(id, "http://")
	id = strings.TrimPrefix(id, "https://")
	if strings.HasPrefix(id, "m.vk.com/") {
		id = id[len("m.vk.com/"):]
	} else if strings.HasPrefix(id, "vk.com/") {
		id = id[len("vk.com/"):]
	}

	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, '#'); i >= 0 {
		id = id[:i]
	}

	return id
}
