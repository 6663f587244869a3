// Package prompt assembles the single completion prompt from the request
// context, sampled exemplars and the style profile.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/goreply/internal/annotate"
	"github.com/hyperifyio/goreply/internal/corpus"
	"github.com/hyperifyio/goreply/internal/style"
)

// CandidateCount is how many reply variants the prompt asks for.
const CandidateCount = 3

// Section headers. Variable content is escaped so it can never start a line
// with '#', which keeps these markers unambiguous.
const (
	HeaderStyle     = "## 文体の特徴:"
	HeaderExemplars = "## 過去の返信例:"
	HeaderComment   = "## 新しいコメント:"
	HeaderGreeting  = "## 挨拶:"
	HeaderReplies   = "## 返信候補:"
)

// ExemplarPrefix starts every exemplar line.
const ExemplarPrefix = "- コメント: "

// Options are the per-variant switches.
type Options struct {
	// ToneClause adds the register clause when a tone was detected.
	ToneClause bool
	// StyleBlock adds the style profile section to the with-history template.
	StyleBlock bool
}

// Composer renders prompts. The zero value renders neither optional section.
type Composer struct {
	Options Options
}

var toneLabels = map[annotate.Tone]string{
	annotate.Casual:  "カジュアル（くだけた口調）",
	annotate.Polite:  "丁寧（です・ます調）",
	annotate.Neutral: "ニュートラル",
}

// Compose selects the with-history template when exemplars is non-empty and
// the no-history template otherwise.
func (c Composer) Compose(ctx annotate.Context, exemplars []corpus.ExemplarPair, profile style.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "あなたは%sアカウントの運営者です。\n", platformLabel(ctx.Platform))
	if len(exemplars) > 0 {
		fmt.Fprintf(&sb, "以下の「過去の返信例」を参考に、次のコメントに対して自然な返信を%dパターン考えてください。\n", CandidateCount)
		sb.WriteString("なるべく過去の文体（語尾、口調、絵文字）を活かしてください。\n")
	} else {
		fmt.Fprintf(&sb, "次のコメントに対して自然な返信を%dパターン考えてください。\n", CandidateCount)
		sb.WriteString("親しみやすく丁寧な口調で、適度に絵文字を使ってください。\n")
	}
	if ctx.Emotion != annotate.NoEmotion {
		fmt.Fprintf(&sb, "感情トーン：%s に合わせて返信してください。\n", ctx.Emotion)
	}
	if c.Options.ToneClause && ctx.Tone != annotate.NoTone {
		fmt.Fprintf(&sb, "相手の口調は%sです。口調を合わせて返信してください。\n", toneLabels[ctx.Tone])
	}
	fmt.Fprintf(&sb, "返信は%d行で、1行に1つずつ「- 」で始めて出力してください。\n", CandidateCount)

	if len(exemplars) > 0 {
		if c.Options.StyleBlock && !profile.Empty() {
			sb.WriteString("\n")
			sb.WriteString(HeaderStyle)
			sb.WriteString("\n")
			if len(profile.TopEmojis) > 0 {
				fmt.Fprintf(&sb, "よく使う絵文字: %s\n", inline(strings.Join(profile.TopEmojis, " ")))
			}
			if len(profile.TopPhrases) > 0 {
				fmt.Fprintf(&sb, "よく使うフレーズ: %s\n", inline(strings.Join(profile.TopPhrases, "、")))
			}
		}
		sb.WriteString("\n")
		sb.WriteString(HeaderExemplars)
		sb.WriteString("\n")
		for _, e := range exemplars {
			fmt.Fprintf(&sb, "%s%s / 返信: %s\n", ExemplarPrefix, inline(e.Text), inline(e.Reply))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(HeaderComment)
	sb.WriteString("\n")
	sb.WriteString(block(ctx.Comment))
	sb.WriteString("\n\n")
	sb.WriteString(HeaderGreeting)
	sb.WriteString("\n")
	sb.WriteString(block(ctx.GreetingInstruction))
	sb.WriteString("\n\n")
	sb.WriteString(HeaderReplies)
	sb.WriteString("\n")
	return sb.String()
}

func platformLabel(p corpus.Platform) string {
	if p == corpus.Generic || p == "" {
		return "SNS"
	}
	return strings.ToUpper(string(p))
}

// inline flattens text onto one line.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// block keeps line structure but escapes any line that would read as a
// section header.
func block(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimLeft(l, " \t　"), "#") {
			lines[i] = `\` + l
		}
	}
	return strings.Join(lines, "\n")
}
