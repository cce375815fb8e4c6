package model

import "strings"

// MatchesSearch reports whether term occurs, case-insensitively, in the
// activity's entity name, description or actor name. An empty term
// matches everything.
func MatchesSearch(a Activity, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{a.EntityName, a.Description, a.ActorName} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
