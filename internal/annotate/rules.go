// Package annotate derives request-scoped signals from an incoming comment:
// emotion, tone register and a time-of-day greeting instruction.
package annotate

import "strings"

// Emotion is a detected emotion category. The zero value means no signal.
type Emotion string

const (
	NoEmotion Emotion = ""
	Joy       Emotion = "joy"
	Sadness   Emotion = "sadness"
	Anger     Emotion = "anger"
	Confused  Emotion = "confused"
)

// Tone is the detected register of a comment.
type Tone string

const (
	NoTone  Tone = ""
	Casual  Tone = "casual"
	Polite  Tone = "polite"
	Neutral Tone = "neutral"
)

// EmotionRule maps a keyword set to a category.
type EmotionRule struct {
	Emotion  Emotion
	Keywords []string
}

// EmotionRules is evaluated top-down; the first rule with any keyword
// contained in the comment wins.
var EmotionRules = []EmotionRule{
	{Emotion: Joy, Keywords: []string{"ありがとう", "嬉しい", "最高"}},
	{Emotion: Sadness, Keywords: []string{"つらい", "痛い", "残念"}},
	{Emotion: Anger, Keywords: []string{"なんで", "ひどい", "怒"}},
	{Emotion: Confused, Keywords: []string{"どうしよう", "迷う", "不安"}},
}

// Marker sets for tone counting. Markers must not overlap one another or a
// single occurrence would be counted twice.
var (
	CasualMarkers = []string{"だよ", "だね", "じゃん", "笑", "ww", "〜", "！"}
	PoliteMarkers = []string{"です", "ます", "ください", "でしょう"}
)

// DetectEmotion returns the first matching category, or NoEmotion.
func DetectEmotion(comment string) Emotion {
	return detectEmotion(EmotionRules, comment)
}

func detectEmotion(rules []EmotionRule, comment string) Emotion {
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(comment, kw) {
				return r.Emotion
			}
		}
	}
	return NoEmotion
}

// DetectTone compares casual and polite marker occurrences. The strictly
// larger count wins; a tie, including zero to zero, is Neutral.
func DetectTone(comment string) Tone {
	casual := countMarkers(comment, CasualMarkers)
	polite := countMarkers(comment, PoliteMarkers)
	switch {
	case casual > polite:
		return Casual
	case polite > casual:
		return Polite
	default:
		return Neutral
	}
}

func countMarkers(s string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(s, m)
	}
	return n
}
