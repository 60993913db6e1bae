package briefing

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// SystemPrompt instructs the model to explain a walking route assessment
const SystemPrompt = `You are a personal safety assistant for women walking in Indian cities. You receive a scored assessment of a walking route and explain it to the traveller.

Instructions:
- Use only the facts in the input. Never invent facilities, streets or incidents.
- Be calm and direct. Do not be alarmist, and do not dismiss genuine risks.
- Mention police stations and hospitals along the route when present.
- When alcohol establishments are present, advise on them specifically.
- Tips must be practical actions for this route (e.g., "Share your live location before starting", "Keep to the lit main road near the hospital").

Return a valid JSON object with these exact fields:
- headline (string) – one line, max 80 chars, states the overall risk in plain words
- summary (string) – two or three sentences explaining the score
- tips (array of strings) – 3 to 5 short, actionable tips
- best_time_to_travel (string) – short advice on when this route is safest`

// BriefingSchema defines the JSON schema for structured briefing output
var BriefingSchema = openai.ChatCompletionResponseFormatJSONSchema{
	Name:   "route_briefing",
	Strict: true,
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"headline": {
				"type": "string",
				"maxLength": 80,
				"description": "One line overall risk statement"
			},
			"summary": {
				"type": "string",
				"description": "Two or three sentences explaining the score"
			},
			"tips": {
				"type": "array",
				"items": { "type": "string" },
				"minItems": 3,
				"maxItems": 5,
				"description": "Short actionable tips for this route"
			},
			"best_time_to_travel": {
				"type": "string",
				"description": "When this route is safest"
			}
		},
		"required": ["headline", "summary", "tips", "best_time_to_travel"],
		"additionalProperties": false
	}`),
}
