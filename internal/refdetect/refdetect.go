// Package refdetect extracts GitHub repository references from free text.
//
// Two forms are recognized: full github.com URLs and bare owner/repo
// tokens. Detection is purely lexical; whether a reference resolves to a
// real repository is decided later by the repo analyst's tool calls.
package refdetect

import (
	"regexp"
	"strings"
)

// MaxReferences bounds how many references a single text can yield.
const MaxReferences = 10

var (
	urlPattern  = regexp.MustCompile(`github\.com/([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]+)`)
	barePattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]{2,})$`)
)

// stopOwners are owner-looking tokens that show up in prose and paths but
// never name a repository owner worth analyzing.
var stopOwners = map[string]bool{
	"http":  true,
	"https": true,
	"www":   true,
	"and":   true,
	"or":    true,
	"the":   true,
	"a":     true,
	"of":    true,
	"in":    true,
	"vs":    true,
	"etc":   true,
	"e.g":   true,
	"i.e":   true,
}

// Detect returns the repository references found in text as owner/repo
// strings, first occurrence order, deduplicated case-insensitively, capped
// at MaxReferences.
func Detect(text string) []string {
	if text == "" {
		return nil
	}

	var refs []string
	seen := make(map[string]bool)

	add := func(owner, repo string) {
		repo = strings.TrimSuffix(repo, ".git")
		repo = strings.TrimRight(repo, ".")
		if owner == "" || repo == "" || stopOwners[strings.ToLower(owner)] {
			return
		}
		ref := owner + "/" + repo
		key := strings.ToLower(ref)
		if seen[key] || len(refs) >= MaxReferences {
			return
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	for _, m := range urlPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}

	// Strip URLs before scanning for bare tokens so path segments inside a
	// URL are not picked up twice.
	stripped := urlPattern.ReplaceAllString(text, " ")
	for _, token := range strings.Fields(stripped) {
		token = strings.Trim(token, ",;()!?")
		if m := barePattern.FindStringSubmatch(token); m != nil {
			add(m[1], m[2])
		}
	}

	return refs
}
