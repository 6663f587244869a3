package annotate

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/hyperifyio/goreply/internal/corpus"
)

// Context is everything known about one incoming request. It is built per
// request and discarded once the reply is produced.
type Context struct {
	Platform            corpus.Platform
	UserID              string
	Comment             string
	Emotion             Emotion
	Tone                Tone
	GreetingInstruction string
}

// Annotator builds request contexts. Tone detection is a variant switch.
type Annotator struct {
	Location   *time.Location
	DetectTone bool
	// Now is overridable in tests.
	Now func() time.Time
}

// NewAnnotator resolves the named timezone (Asia/Tokyo when empty).
func NewAnnotator(timezone string, detectTone bool) (*Annotator, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Annotator{Location: loc, DetectTone: detectTone, Now: time.Now}, nil
}

// Annotate never fails: a missing signal is a valid outcome.
func (a *Annotator) Annotate(platform corpus.Platform, userID, comment string) Context {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ctx := Context{
		Platform:            platform,
		UserID:              userID,
		Comment:             comment,
		Emotion:             DetectEmotion(comment),
		GreetingInstruction: GreetingInstruction(now(), a.Location),
	}
	if a.DetectTone {
		ctx.Tone = DetectTone(comment)
	}
	return ctx
}
