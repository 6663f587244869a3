package corpus

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Library groups the per-platform corpora with the shared display names.
type Library struct {
	corpora map[Platform]*Corpus
	names   *Names
}

// LoadLibrary loads every configured platform file. Platforms without a path
// get an empty corpus. The first failure aborts the load.
func LoadLibrary(paths map[Platform]string, names *Names) (*Library, error) {
	l := &Library{corpora: make(map[Platform]*Corpus, len(Platforms)), names: names}
	for _, p := range Platforms {
		path := strings.TrimSpace(paths[p])
		if path == "" {
			l.corpora[p] = Empty(p, names)
			continue
		}
		c, err := Load(p, path, names)
		if err != nil {
			return nil, err
		}
		log.Info().Str("platform", string(p)).Int("users", c.Len()).Msg("history corpus loaded")
		l.corpora[p] = c
	}
	return l, nil
}

// NewLibrary assembles a library from already built corpora.
func NewLibrary(names *Names, corpora ...*Corpus) *Library {
	l := &Library{corpora: make(map[Platform]*Corpus, len(corpora)), names: names}
	for _, c := range corpora {
		l.corpora[c.Platform()] = c
	}
	return l
}

// Corpus returns the corpus for p, or an empty one when p has no history.
func (l *Library) Corpus(p Platform) *Corpus {
	if c, ok := l.corpora[p]; ok {
		return c
	}
	return Empty(p, l.names)
}

// Names returns the shared display-name mapping.
func (l *Library) Names() *Names { return l.names }
