package engine

import "strings"

// Animation hints consumed by the puppet-rendering layer.
const (
	HintConfused = "confused"
	HintHappy    = "happy"
	HintTalking  = "talking"
)

// DeriveHint classifies reply text into an animation hint. The rules
// are first-match-wins and cover both ASCII and full-width punctuation:
// a question mark means confused, an exclamation mark means happy,
// anything else means talking.
func DeriveHint(text string) string {
	if strings.ContainsAny(text, "?？") {
		return HintConfused
	}
	if strings.ContainsAny(text, "!！") {
		return HintHappy
	}
	return HintTalking
}
