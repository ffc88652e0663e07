package safety

import "strings"

// Keyword tag names. These are the values that appear in [Result.Reasons]
// when the local scan fires.
const (
	TagSelfHarm = "self_harm"
	TagViolence = "violence"
	TagRage     = "rage"
)

// harmKeywords maps each tag to its phrase list. Matching is
// case-insensitive substring containment; vocabularies are evaluated in
// slice order so reasons always come out as self_harm, violence, rage.
var harmKeywords = []struct {
	tag     string
	phrases []string
}{
	{TagSelfHarm, []string{
		"suicide",
		"kill myself",
		"end it",
		"can't go on",
		"hurt myself",
		"jump off",
	}},
	{TagViolence, []string{
		"hurt them",
		"revenge",
		"murder",
		"attack",
		"stab",
		"shoot",
		"get back at",
	}},
	{TagRage, []string{
		"smash",
		"destroy",
		"furious",
		"rage",
		"explode",
		"yell",
		"fume",
	}},
}

// scanKeywords runs the deterministic local scan and derives a level:
// self_harm or violence → blocked, rage alone → elevated, otherwise ok
// with the no-flags sentinel.
func scanKeywords(transcript string) Result {
	lowered := strings.ToLower(transcript)

	var reasons []string
	for _, vocab := range harmKeywords {
		for _, phrase := range vocab.phrases {
			if strings.Contains(lowered, phrase) {
				reasons = append(reasons, vocab.tag)
				break
			}
		}
	}

	level := LevelOK
	for _, r := range reasons {
		if r == TagSelfHarm || r == TagViolence {
			level = LevelBlocked
			break
		}
		if r == TagRage {
			level = LevelElevated
		}
	}

	if len(reasons) == 0 {
		reasons = []string{ReasonNoFlags}
	}
	return Result{Level: level, Reasons: reasons}
}
