// Package style derives a corpus-wide style profile: the emoji and short
// phrases the account uses most often.
package style

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/goreply/internal/corpus"
)

const (
	maxEmojis        = 3
	maxPhrases       = 3
	phraseCandidates = 10
	minPhraseRunes   = 3
)

// Profile summarizes frequent emoji and phrases. Both lists are ordered by
// descending frequency with ties in first-seen order.
type Profile struct {
	TopEmojis  []string `json:"top_emojis"`
	TopPhrases []string `json:"top_phrases"`
}

// Empty reports whether the profile carries no signal at all.
func (p Profile) Empty() bool { return len(p.TopEmojis) == 0 && len(p.TopPhrases) == 0 }

// Source selects which side of each exemplar pair is scanned.
type Source int

const (
	// SourceComment scans the incoming comment text of each exemplar.
	SourceComment Source = iota
	// SourceReply scans the operator's replies.
	SourceReply
)

// ParseSource maps "comment" or "reply" to a Source; anything else is SourceComment.
func ParseSource(s string) Source {
	if strings.EqualFold(strings.TrimSpace(s), "reply") {
		return SourceReply
	}
	return SourceComment
}

// Records is the part of the corpus the profiler reads.
type Records interface {
	All() []corpus.Record
}

// emojiTable covers the pictographic blocks used in social posts.
var emojiTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F300, Hi: 0x1F6FF, Stride: 1},
		{Lo: 0x1F900, Hi: 0x1FAFF, Stride: 1},
	},
}

// phraseRe matches word-like runs in Japanese scripts, Hangul and ASCII
// alphanumerics. Runs longer than six characters are cut into consecutive
// chunks by the leftmost-first scan.
var phraseRe = regexp.MustCompile(`[\p{Hiragana}\p{Katakana}\p{Han}\p{Hangul}ーa-zA-Z0-9]{2,6}`)

// Compute scans the whole corpus. It is the expensive step of the pipeline;
// use a Profiler to memoize it.
func Compute(src Records, source Source) Profile {
	text := corpusText(src, source)

	emojis := newCounter()
	for _, r := range text {
		if unicode.Is(emojiTable, r) {
			emojis.add(string(r))
		}
	}

	phrases := newCounter()
	for _, m := range phraseRe.FindAllString(text, -1) {
		phrases.add(m)
	}

	var p Profile
	p.TopEmojis = emojis.top(maxEmojis)
	for _, ph := range phrases.top(phraseCandidates) {
		if utf8.RuneCountInString(ph) < minPhraseRunes {
			continue
		}
		p.TopPhrases = append(p.TopPhrases, ph)
		if len(p.TopPhrases) == maxPhrases {
			break
		}
	}
	return p
}

func corpusText(src Records, source Source) string {
	var sb strings.Builder
	for _, rec := range src.All() {
		for _, c := range rec.Comments {
			if source == SourceReply {
				sb.WriteString(c.Reply)
			} else {
				sb.WriteString(c.Text)
			}
			sb.WriteByte('\n')
		}
	}
	// NFKC folds full-width latin and half-width kana so variants count together.
	return norm.NFKC.String(sb.String())
}

type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter { return &counter{counts: map[string]int{}} }

func (c *counter) add(s string) {
	if _, ok := c.counts[s]; !ok {
		c.order = append(c.order, s)
	}
	c.counts[s]++
}

func (c *counter) top(n int) []string {
	keys := append([]string(nil), c.order...)
	sort.SliceStable(keys, func(i, j int) bool { return c.counts[keys[i]] > c.counts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

// Profiler memoizes Compute for a fixed corpus. Invalidate forces the next
// call to rescan.
type Profiler struct {
	src    Records
	source Source

	mu      sync.Mutex
	valid   bool
	profile Profile
}

// NewProfiler returns a lazily computed profile over src.
func NewProfiler(src Records, source Source) *Profiler {
	return &Profiler{src: src, source: source}
}

// Profile returns the memoized profile, computing it on first use.
func (p *Profiler) Profile() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid {
		p.profile = Compute(p.src, p.source)
		p.valid = true
	}
	return p.profile
}

// Invalidate drops the memoized profile.
func (p *Profiler) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}
