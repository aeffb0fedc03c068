// Package command parses the bot's reply-side command grammar.
package command

import (
	"fmt"
	"regexp"
	"strings"
)

// Action is the closed set of reply commands the bot understands.
type Action int

const (
	ActionUnknown Action = iota
	ActionPQF
	ActionResolution
	ActionResolve
	ActionTicket
	ActionConfirmBug
)

func (a Action) String() string {
	switch a {
	case ActionPQF:
		return "pqf"
	case ActionResolution:
		return "resolution"
	case ActionResolve:
		return "resolve"
	case ActionTicket:
		return "ticket"
	case ActionConfirmBug:
		return "confirm bug"
	default:
		return "unknown"
	}
}

// Command is a parsed pqf intake command.
type Command struct {
	Origin  string // "Internal" or "Eksternal"
	Product string // "Agentlabs" or "Appcenter"
}

// FormatError carries the user-facing message for a malformed command.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return e.Message }

var (
	mentionRe = regexp.MustCompile(`<@[^>]+>`)
	originRe  = regexp.MustCompile(`(internal|eksternal)`)
	pqfRe     = regexp.MustCompile(`pqf`)
	productRe = regexp.MustCompile(`(agentlabs|appcenter)`)
)

var (
	validOrigins  = []string{"internal", "eksternal"}
	validProducts = []string{"agentlabs", "appcenter"}
)

// Detect classifies message text into an action by substring containment,
// checked in fixed priority order. The first matching branch wins, so text
// containing both "resolution" and "ticket" is always a resolution command.
func Detect(text string) Action {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "pqf"):
		return ActionPQF
	case strings.Contains(t, "resolution"):
		return ActionResolution
	case strings.Contains(t, "resolve"):
		return ActionResolve
	case strings.Contains(t, "ticket"):
		return ActionTicket
	case strings.Contains(t, "confirm bug"), strings.Contains(t, "feedback"):
		return ActionConfirmBug
	default:
		return ActionUnknown
	}
}

// ParsePQF validates the intake grammar: an origin keyword, the literal
// "pqf", and a product keyword must each appear somewhere in the text, in
// any order. Matched values are then re-checked against the valid sets so
// a bad keyword gets a field-specific message rather than the generic one.
func ParsePQF(text string) (Command, error) {
	t := strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	t = strings.ToLower(t)

	originMatch := originRe.FindStringSubmatch(t)
	pqfMatch := pqfRe.FindString(t)
	productMatch := productRe.FindStringSubmatch(t)

	if originMatch == nil || pqfMatch == "" || productMatch == nil {
		return Command{}, &FormatError{Message: "Format perintah tidak valid"}
	}

	origin := originMatch[1]
	product := productMatch[1]

	if !contains(validOrigins, origin) {
		return Command{}, &FormatError{Message: fmt.Sprintf("From harus 'internal' atau 'eksternal', bukan '%s'", origin)}
	}
	if !contains(validProducts, product) {
		return Command{}, &FormatError{Message: fmt.Sprintf("Product harus 'agentlabs' atau 'appcenter', bukan '%s'", product)}
	}

	return Command{Origin: capitalize(origin), Product: capitalize(product)}, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
