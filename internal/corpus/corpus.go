package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Platform identifies which social platform a comment arrived on. Each
// platform with history has its own corpus file.
type Platform string

const (
	Twitter Platform = "twitter"
	Yamap   Platform = "yamap"
	Generic Platform = "generic"
)

// Platforms lists every known platform in display order.
var Platforms = []Platform{Twitter, Yamap, Generic}

// ParsePlatform maps a case-insensitive name to a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// ExemplarPair is a historical incoming comment and the operator's reply to it.
type ExemplarPair struct {
	Text  string `json:"text"`
	Reply string `json:"reply"`
}

// Record is the history of a single user on one platform.
type Record struct {
	UserID      string
	Comments    []ExemplarPair
	DisplayName string
}

// ErrCorpusLoad is returned for any unreadable or malformed history file.
// Callers treat it as fatal at startup.
var ErrCorpusLoad = errors.New("corpus load failed")

// Corpus is the read-only index of exemplar pairs per user for one platform.
// Only display names change after load, and those live in Names.
type Corpus struct {
	platform Platform
	records  map[string][]ExemplarPair
	order    []string
	names    *Names
}

type rawPair struct {
	Text  *string `json:"text"`
	Reply *string `json:"reply"`
}

type rawRecord struct {
	Comments *[]rawPair `json:"comments"`
}

// Load reads a history file of the form {"<user id>": {"comments": [{"text", "reply"}, ...]}}.
func Load(platform Platform, path string, names *Names) (*Corpus, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorpusLoad, path, err)
	}
	c, err := Parse(platform, b, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse builds a corpus from JSON bytes. Any malformed entry rejects the whole
// corpus; a partial index is never returned.
func Parse(platform Platform, data []byte, names *Names) (*Corpus, error) {
	var raw map[string]rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusLoad, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrCorpusLoad)
	}
	c := &Corpus{platform: platform, records: make(map[string][]ExemplarPair, len(raw)), names: names}
	for userID, rec := range raw {
		if strings.TrimSpace(userID) == "" {
			return nil, fmt.Errorf("%w: empty user id", ErrCorpusLoad)
		}
		if rec.Comments == nil {
			return nil, fmt.Errorf("%w: user %s: missing comments", ErrCorpusLoad, userID)
		}
		pairs := make([]ExemplarPair, 0, len(*rec.Comments))
		for i, p := range *rec.Comments {
			if p.Text == nil || p.Reply == nil {
				return nil, fmt.Errorf("%w: user %s: comment %d: text and reply are required", ErrCorpusLoad, userID, i)
			}
			pairs = append(pairs, ExemplarPair{Text: *p.Text, Reply: *p.Reply})
		}
		c.records[userID] = pairs
		c.order = append(c.order, userID)
	}
	sort.Strings(c.order)
	return c, nil
}

// Empty returns a corpus with no users, used for platforms without history.
func Empty(platform Platform, names *Names) *Corpus {
	return &Corpus{platform: platform, records: map[string][]ExemplarPair{}, names: names}
}

// Platform reports which platform the corpus belongs to.
func (c *Corpus) Platform() Platform { return c.platform }

// Len returns the number of users in the corpus.
func (c *Corpus) Len() int { return len(c.order) }

// Lookup returns the record for userID. A missing user is not an error.
func (c *Corpus) Lookup(userID string) (Record, bool) {
	pairs, ok := c.records[userID]
	if !ok {
		return Record{}, false
	}
	return Record{UserID: userID, Comments: pairs, DisplayName: c.names.Display(userID)}, true
}

// Pairs returns the exemplars stored for userID without copying. Callers must
// not modify the returned slice.
func (c *Corpus) Pairs(userID string) []ExemplarPair {
	return c.records[userID]
}

// All returns every record ordered by user id.
func (c *Corpus) All() []Record {
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Record{UserID: id, Comments: c.records[id], DisplayName: c.names.Display(id)})
	}
	return out
}

// UserIDs returns user ids in sorted order.
func (c *Corpus) UserIDs() []string {
	return append([]string(nil), c.order...)
}
