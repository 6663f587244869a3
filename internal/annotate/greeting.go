package annotate

import "time"

// DefaultTimezone is the reference zone for greeting bands.
const DefaultTimezone = "Asia/Tokyo"

// Greeting instructions embedded verbatim into the prompt.
const (
	MorningGreeting   = "現在は朝の時間帯です。必要に応じて「おはようございます」など朝らしい挨拶を自然に添えてください。"
	AfternoonGreeting = "現在は昼の時間帯です。必要に応じて「こんにちは」など日中らしい挨拶を自然に添えてください。"
	EveningGreeting   = "現在は夜の時間帯です。必要に応じて「こんばんは」「お疲れさまです」など夜らしい挨拶を自然に添えてください。"
	LateNightGreeting = "現在は深夜の時間帯です。挨拶は控えめにし、「夜遅くまでありがとうございます」など相手を気遣う一言を添えてください。"
)

// GreetingBand is a half-open hour range [Start, End).
type GreetingBand struct {
	Start, End  int
	Instruction string
}

// GreetingBands partitions the day; hours outside every band are late night.
var GreetingBands = []GreetingBand{
	{Start: 5, End: 11, Instruction: MorningGreeting},
	{Start: 11, End: 17, Instruction: AfternoonGreeting},
	{Start: 17, End: 23, Instruction: EveningGreeting},
}

// GreetingForHour returns the instruction for an hour of day (0-23).
func GreetingForHour(hour int) string {
	for _, b := range GreetingBands {
		if hour >= b.Start && hour < b.End {
			return b.Instruction
		}
	}
	return LateNightGreeting
}

// GreetingInstruction evaluates now in loc. A nil loc means UTC.
func GreetingInstruction(now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return GreetingForHour(now.Hour())
}
