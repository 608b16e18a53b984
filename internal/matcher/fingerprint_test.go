package matcher

import "testing"

func refsFrom(episodes map[string]string) referenceSet {
	return buildReferenceVectors(&Corpus{Episodes: episodes})
}

func TestScoreTranscriptPicksClosestEpisode(t *testing.T) {
	refs := refsFrom(map[string]string{
		"S01E01": "walter white chemistry teacher classroom lesson",
		"S01E02": "jesse pinkman camper desert cook acid",
	})
	code, score := scoreTranscript("walter white teaching chemistry in the classroom", refs)
	if code != "S01E01" {
		t.Fatalf("code = %q, want S01E01", code)
	}
	if score <= 0 {
		t.Fatalf("score = %v, want > 0", score)
	}
}

func TestScoreTranscriptEmptyTranscript(t *testing.T) {
	refs := refsFrom(map[string]string{
		"S01E01": "walter white breaking bad",
	})
	code, score := scoreTranscript("", refs)
	if code != "" || score != 0 {
		t.Errorf("got (%q, %v), want (\"\", 0)", code, score)
	}
}

func TestScoreTranscriptEmptyCorpus(t *testing.T) {
	code, score := scoreTranscript("some transcript with real words", refsFrom(nil))
	if code != "" || score != 0 {
		t.Errorf("got (%q, %v), want (\"\", 0)", code, score)
	}
}

func TestBuildReferenceVectorsDownweightsSharedVocabulary(t *testing.T) {
	refs := refsFrom(map[string]string{
		"S01E01": "gotham batman robin riddler puzzle clue mystery",
		"S01E02": "gotham batman robin joker chaos laugh mayhem",
		"S01E03": "gotham batman robin penguin umbrella hideout lair",
	})
	if len(refs.vectors) != 3 {
		t.Fatalf("expected 3 reference vectors, got %d", len(refs.vectors))
	}
	// A transcript of nothing but shared vocabulary has no distinguishing
	// terms left after IDF weighting and must not match anything.
	code, score := scoreTranscript("gotham batman robin", refs)
	if code != "" || score != 0 {
		t.Errorf("shared-vocabulary transcript matched (%q, %v), want no match", code, score)
	}
	// A transcript carrying an episode's distinctive terms still matches it.
	code, _ = scoreTranscript("the riddler left another puzzle and a clue", refs)
	if code != "S01E01" {
		t.Errorf("distinctive transcript matched %q, want S01E01", code)
	}
}
