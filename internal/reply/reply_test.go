package reply

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"dashes", "- reply one\n- reply two\n\n- reply three", []string{"reply one", "reply two", "reply three"}},
		{"numbers", "1. おはようございます！\n2) 今日もよろしく\n３．ありがとう😊", []string{"おはようございます！", "今日もよろしく", "ありがとう😊"}},
		{"no markers", "first\r\nsecond\n   \nthird  ", []string{"first", "second", "third"}},
		{"fewer than three", "- only one", []string{"only one"}},
		{"empty", "\n\n", nil},
		{"bullets", "・ いいですね\n• すごい\n* 最高\n(1) 一番", []string{"いいですね", "すごい", "最高", "一番"}},
		{"marker only line", "-\n- ok", []string{"ok"}},
		{"circled numbers", "① ありがとうございます\n②またね\n❸ 気をつけて", []string{"ありがとうございます", "またね", "気をつけて"}},
		{"full-width space after bullet", "・\u3000お疲れさま", []string{"お疲れさま"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Parse(c.raw); !reflect.DeepEqual(got, c.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", c.raw, got, c.want)
			}
		})
	}
}

func TestParse_KeepsInnerHyphens(t *testing.T) {
	got := Parse("- well-known trail - nice")
	if len(got) != 1 || got[0] != "well-known trail - nice" {
		t.Fatalf("got %#v", got)
	}
}

func TestParse_NumbersAreNotMarkers(t *testing.T) {
	got := Parse("1.5km歩きました\n10:00に集合\n2024年もよろしく\n-5℃の朝ですね\n*注意*\n・印は不要")
	want := []string{"1.5km歩きました", "10:00に集合", "2024年もよろしく", "-5℃の朝ですね", "*注意*", "・印は不要"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}
