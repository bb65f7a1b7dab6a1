package llm

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/openrec/reggie/internal/reggie"
)

//go:embed prompt.md
var parserPrompt string

// Extractor implements reggie.Extractor on top of the messages client.
type Extractor struct {
	client *Client
}

// NewExtractor builds an Extractor.
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

type extractedProgram struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	AgeGroup           string `json:"age_group"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	DayOfWeek          string `json:"day_of_week"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Location           string `json:"location"`
	Cost               string `json:"cost"`
	RegistrationStatus string `json:"registration_status"`
	SpotsAvailable     *int   `json:"spots_available"`
	SourceURL          string `json:"source_url"`
}

type extractionPayload struct {
	Programs []extractedProgram       `json:"programs"`
	Errors   []reggie.ExtractionError `json:"errors"`
}

// ExtractPrograms sends the combined page text to the service and
// recovers the structured result. Any failure is returned to the
// caller, which degrades the discovery run; there are no retries here.
func (e *Extractor) ExtractPrograms(ctx context.Context, sourceURL, text string) (reggie.Extraction, error) {
	prompt := fmt.Sprintf(
		"Parse programs from this scraped content from %s. Return only valid JSON matching the parser output format.\n\n%s",
		sourceURL, text,
	)
	resp, err := e.client.Complete(ctx, Request{
		System:   parserPrompt,
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return reggie.Extraction{}, fmt.Errorf("extraction call: %w", err)
	}

	var payload extractionPayload
	if err := DecodeObject(resp.FirstText(), &payload); err != nil {
		return reggie.Extraction{}, fmt.Errorf("recover extraction output: %w", err)
	}

	out := reggie.Extraction{Errors: payload.Errors}
	for _, p := range payload.Programs {
		if p.Name == "" {
			continue
		}
		out.Programs = append(out.Programs, reggie.Program{
			Name:               p.Name,
			Type:               p.Type,
			AgeGroup:           p.AgeGroup,
			StartDate:          p.StartDate,
			EndDate:            p.EndDate,
			DayOfWeek:          p.DayOfWeek,
			StartTime:          p.StartTime,
			EndTime:            p.EndTime,
			Location:           p.Location,
			Cost:               p.Cost,
			RegistrationStatus: p.RegistrationStatus,
			SpotsAvailable:     p.SpotsAvailable,
			SourceURL:          p.SourceURL,
		})
	}
	return out, nil
}
