package service

import "strings"

type synonymEntry struct {
	term     string
	synonyms []string
}

// domainSynonyms is scanned in order so expansions are deterministic.
var domainSynonyms = []synonymEntry{
	{"budget", []string{"cost", "spend", "money", "price", "fee", "allocation"}},
	{"campaign", []string{"ad campaign", "advertising campaign", "marketing campaign"}},
	{"create", []string{"make", "build", "set up", "establish", "start", "launch"}},
	{"login", []string{"sign in", "access", "enter", "authenticate"}},
	{"portal", []string{"platform", "dashboard", "interface", "system"}},
	{"requirements", []string{"specs", "specifications", "needs", "criteria", "rules"}},
	{"image", []string{"picture", "photo", "graphic", "visual", "media"}},
	{"video", []string{"clip", "movie", "media", "content"}},
	{"minimum", []string{"min", "least", "smallest", "lowest"}},
	{"maximum", []string{"max", "most", "largest", "highest"}},
	{"report", []string{"reporting", "analytics", "metrics", "data", "stats"}},
	{"optimize", []string{"improve", "enhance", "boost", "optimization"}},
	{"audience", []string{"target", "users", "customers", "demographics"}},
	{"ad", []string{"advertisement", "advertising", "promotion", "marketing"}},
}

var expansionStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "how": {}, "what": {}, "where": {},
	"when": {}, "why": {},
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// ExpandQuery produces the embedding variants for a query:
//
//	[0] the normalized query
//	[1] the normalized query followed by synonyms of every known term it contains
//	[2] the normalized query with stop words removed, when any words remain
func ExpandQuery(query string) []string {
	normalized := normalizeQuery(query)
	variants := []string{normalized}

	parts := []string{normalized}
	for _, entry := range domainSynonyms {
		if strings.Contains(normalized, entry.term) {
			parts = append(parts, entry.synonyms...)
		}
	}
	variants = append(variants, strings.Join(parts, " "))

	var keywords []string
	for _, word := range strings.Fields(normalized) {
		if _, stop := expansionStopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	if len(keywords) > 0 {
		variants = append(variants, strings.Join(keywords, " "))
	}

	return variants
}
