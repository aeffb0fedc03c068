package classify

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// parseResponse extracts a Classification from raw model output. Strategy:
// strip code fences, try strict JSON, then run the text through jsonrepair
// and try again. Missing fields are backfilled per field; a response no
// strategy can parse degrades to the full fallback.
func parseResponse(raw, urgencyDefault string) Result {
	text := stripFences(strings.TrimSpace(raw))

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			log.Error().Err(err).Str("repairError", repairErr.Error()).Msg("Unparseable analysis response")
			return fallbackResult("unparseable model response")
		}
		if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
			log.Error().Err(err).Msg("Repaired analysis response still invalid")
			return fallbackResult("unparseable model response")
		}
	}

	c := Classification{
		Type:        fieldOr(fields, "type", "Unknown"),
		Product:     fieldOr(fields, "product", "Unknown"),
		Feature:     fieldOr(fields, "fitur", "Unknown"),
		Description: fieldOr(fields, "description", "Unknown"),
		Role:        fieldOr(fields, "role", "Unknown"),
		ReporterID:  fieldOr(fields, "reporter", "Unknown"),
		ResponderID: fieldOr(fields, "responder", "Unknown"),
		Severity:    fieldOr(fields, "severity", "Others (Ask)"),
		Urgency:     fieldOr(fields, "urgency", urgencyDefault),
	}
	return Result{Classification: c}
}

func fallbackResult(reason string) Result {
	return Result{
		Classification: Classification{
			Type:        "Other",
			Product:     "Unknown",
			Feature:     "Unknown",
			Description: "Gagal menganalisis thread",
			Role:        "Other",
			ReporterID:  "Unknown",
			ResponderID: "Unknown",
			Severity:    "Others (Ask)",
			Urgency:     "Low",
		},
		Degraded: true,
		Reason:   reason,
	}
}

func fieldOr(fields map[string]any, key, fallback string) string {
	v, ok := fields[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

func stripFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
