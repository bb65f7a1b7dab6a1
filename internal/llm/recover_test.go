package llm

import (
	"errors"
	"testing"
)

type probe struct {
	Programs []struct {
		Name string `json:"name"`
	} `json:"programs"`
}

func TestDecodeObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
	}{
		{"fenced json block", "Here you go:\n```json\n{\"programs\":[{\"name\":\"Swim\"}]}\n```\nDone."},
		{"fenced block without language", "```\n{\"programs\":[{\"name\":\"Swim\"}]}\n```"},
		{"embedded object", "The result is {\"programs\":[{\"name\":\"Swim\"}]} as requested."},
		{"raw json", "{\"programs\":[{\"name\":\"Swim\"}]}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out probe
			if err := DecodeObject(tc.text, &out); err != nil {
				t.Fatalf("DecodeObject() error = %v", err)
			}
			if len(out.Programs) != 1 || out.Programs[0].Name != "Swim" {
				t.Fatalf("decoded %+v", out)
			}
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		var out probe
		err := DecodeObject("I could not find any programs, sorry.", &out)
		if !errors.Is(err, ErrUnparseable) {
			t.Fatalf("error = %v, want ErrUnparseable", err)
		}
	})

	t.Run("broken fenced block falls through to embedded object", func(t *testing.T) {
		var out probe
		text := "```json\n{\"programs\":[{\"name\":\"Swim\"}]},,,\n```"
		if err := DecodeObject(text, &out); err != nil {
			t.Fatalf("DecodeObject() error = %v", err)
		}
		if len(out.Programs) != 1 {
			t.Fatalf("decoded %+v", out)
		}
	})
}
