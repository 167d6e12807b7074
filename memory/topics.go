package memory

import "strings"

// Domain is a caller-facing partition of preferences used to scope a profile
// query. Domains map onto stored topics: places draws on food records.
type Domain string

const (
	DomainPlaces Domain = "places"
	DomainMovies Domain = "movies"
	DomainMusic  Domain = "music"
)

// AllDomains returns the fixed domain set in stable order.
func AllDomains() []Domain {
	return []Domain{DomainPlaces, DomainMovies, DomainMusic}
}

// ParseDomain validates a caller-supplied domain string.
func ParseDomain(s string) (Domain, bool) {
	switch Domain(s) {
	case DomainPlaces, DomainMovies, DomainMusic:
		return Domain(s), true
	}
	return "", false
}

// Topic returns the stored topic a domain filters on.
func (d Domain) Topic() Topic {
	switch d {
	case DomainPlaces:
		return TopicFood
	case DomainMovies:
		return TopicMovies
	case DomainMusic:
		return TopicMusic
	}
	return TopicNone
}

// topicKeywords is the fixed vocabulary for keyword-based topic inference.
// Completeness is a tuning parameter: a miss costs recall, not correctness.
var topicKeywords = []struct {
	topic Topic
	words []string
}{
	{TopicFood, []string{"food", "restaurant", "cuisine", "meal", "dinner", "lunch", "breakfast", "eat", "allergy", "vegetarian"}},
	{TopicMovies, []string{"movie", "film", "cinema", "director", "actor"}},
	{TopicMusic, []string{"music", "song", "artist", "album", "band"}},
}

// InferTopic guesses a record's topic by substring membership against the
// fixed vocabulary, checking topics in declaration order.
func InferTopic(text string) Topic {
	lower := strings.ToLower(text)
	for _, tk := range topicKeywords {
		for _, w := range tk.words {
			if strings.Contains(lower, w) {
				return tk.topic
			}
		}
	}
	return TopicNone
}

// MatchesDomain reports whether a record belongs to a domain. Records that
// carry a stored topic are matched on it directly; records without one
// (source-of-truth results predate topic assignment) fall back to the
// keyword test. Both backends therefore produce the same external shape.
func MatchesDomain(rec Record, d Domain) bool {
	if rec.Topic != "" && rec.Topic != TopicNone {
		return rec.Topic == d.Topic()
	}
	return InferTopic(rec.Text) == d.Topic()
}

// domainQueries is the static domain-to-query mapping for the stable
// fan-out. One canonical query per domain; a nil domain expands to all
// three.
var domainQueries = map[Domain]string{
	DomainPlaces: "food preferences dietary restrictions favorite cuisine restaurants",
	DomainMovies: "movie preferences favorite films genres directors",
	DomainMusic:  "music preferences favorite artists songs genres",
}

// DomainQuery returns the canonical stable-preference query for a domain.
func DomainQuery(d Domain) string {
	return domainQueries[d]
}
