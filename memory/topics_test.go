package memory_test

import (
	"testing"

	"github.com/preflect/memsync/memory"
)

func TestInferTopic(t *testing.T) {
	cases := []struct {
		text string
		want memory.Topic
	}{
		{"I have a severe peanut allergy", memory.TopicFood},
		{"Loves sushi restaurants", memory.TopicFood},
		{"Became vegetarian last year", memory.TopicFood},
		{"Favorite director is Denis Villeneuve", memory.TopicMovies},
		{"Plays guitar in a band", memory.TopicMusic},
		{"Enjoys hiking on weekends", memory.TopicNone},
		{"", memory.TopicNone},
	}
	for _, tc := range cases {
		if got := memory.InferTopic(tc.text); got != tc.want {
			t.Errorf("InferTopic(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestParseDomain(t *testing.T) {
	for _, d := range memory.AllDomains() {
		got, ok := memory.ParseDomain(string(d))
		if !ok || got != d {
			t.Errorf("ParseDomain(%q) = %q, %v", d, got, ok)
		}
	}
	if _, ok := memory.ParseDomain("sports"); ok {
		t.Error("expected unknown domain to be rejected")
	}
}

func TestDomainTopic(t *testing.T) {
	// The places domain draws on food records.
	if got := memory.DomainPlaces.Topic(); got != memory.TopicFood {
		t.Errorf("places topic = %q, want food", got)
	}
	if got := memory.DomainMovies.Topic(); got != memory.TopicMovies {
		t.Errorf("movies topic = %q, want movies", got)
	}
}

func TestMatchesDomain(t *testing.T) {
	// A stored topic wins over keyword inference.
	tagged := memory.Record{Text: "watches a movie every night", Topic: memory.TopicMusic}
	if memory.MatchesDomain(tagged, memory.DomainMovies) {
		t.Error("stored topic must take precedence over keywords")
	}
	if !memory.MatchesDomain(tagged, memory.DomainMusic) {
		t.Error("expected record to match its stored topic's domain")
	}

	// Without a stored topic the keyword vocabulary decides.
	untagged := memory.Record{Text: "allergic to peanuts"}
	if !memory.MatchesDomain(untagged, memory.DomainPlaces) {
		t.Error("expected keyword fallback to match places via food")
	}
	if memory.MatchesDomain(untagged, memory.DomainMusic) {
		t.Error("food record must not match music")
	}
}

func TestNewRecordID_Deterministic(t *testing.T) {
	a := memory.NewRecordID("Matt", "loves sushi", memory.TopicFood)
	b := memory.NewRecordID("Matt", "loves sushi", memory.TopicFood)
	if a != b {
		t.Fatalf("same identity produced different IDs: %s vs %s", a, b)
	}
	if c := memory.NewRecordID("Noa", "loves sushi", memory.TopicFood); c == a {
		t.Fatal("different users must produce different IDs")
	}
	if c := memory.NewRecordID("Matt", "loves sushi", memory.TopicNone); c == a {
		t.Fatal("different topics must produce different IDs")
	}
}

func TestDomainQuery(t *testing.T) {
	for _, d := range memory.AllDomains() {
		if memory.DomainQuery(d) == "" {
			t.Errorf("no canonical query for domain %q", d)
		}
	}
}
