// Package action defines the proposable assistant actions and the
// confirmation lifecycle every proposal goes through before anything is
// performed on the user's behalf.
package action

import (
	"errors"
	"fmt"
	"sort"
)

// Kind identifies a proposable action. The set is closed.
type Kind string

const (
	KindOpenURL         Kind = "openUrl"
	KindComposeEmail    Kind = "composeEmail"
	KindScheduleEvent   Kind = "scheduleEvent"
	KindAdjustVolume    Kind = "adjustVolume"
	KindAskConfirmation Kind = "askForConfirmation"
)

// ErrUnknownActionKind is returned for tool names outside the catalog.
var ErrUnknownActionKind = errors.New("unknown action kind")

// Definition describes one catalog entry.
type Definition struct {
	Kind Kind
	// Description is sent to the model provider as the tool description.
	Description string
	// Prompt is shown to the user above the Confirm/Deny buttons.
	Prompt string
	// Schema is the JSON Schema of the parameters object.
	Schema map[string]any
	// SideEffect reports whether a confirmed proposal of this kind can be
	// executed by the client.
	SideEffect bool

	validate func(fields map[string][]byte) (Parameters, error)
}

var catalog = map[Kind]Definition{
	KindOpenURL: {
		Kind:        KindOpenURL,
		Description: "Propose opening a URL in a new tab. Always ask for confirmation first.",
		Prompt:      "Assistant wants to open a URL.",
		Schema: objectSchema([]string{"url"}, map[string]any{
			"url": map[string]any{"type": "string", "format": "uri"},
		}),
		SideEffect: true,
		validate:   validateOpenURL,
	},
	KindComposeEmail: {
		Kind:        KindComposeEmail,
		Description: "Propose composing an email draft. Always ask for confirmation first.",
		Prompt:      "Assistant wants to compose an email draft.",
		Schema: objectSchema([]string{"to", "subject", "body"}, map[string]any{
			"to":      map[string]any{"type": "string", "format": "email", "description": "Recipient email"},
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
		}),
		validate: validateComposeEmail,
	},
	KindScheduleEvent: {
		Kind:        KindScheduleEvent,
		Description: "Propose creating a calendar event. Always ask for confirmation first.",
		Prompt:      "Assistant wants to propose a calendar event.",
		Schema: objectSchema([]string{"title", "when"}, map[string]any{
			"title":           map[string]any{"type": "string"},
			"when":            map[string]any{"type": "string", "description": "ISO or natural language time"},
			"durationMinutes": map[string]any{"type": "integer", "exclusiveMinimum": 0},
			"location":        map[string]any{"type": "string"},
			"attendees": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "format": "email"},
			},
		}),
		validate: validateScheduleEvent,
	},
	KindAdjustVolume: {
		Kind:        KindAdjustVolume,
		Description: "Propose adjusting system volume (0-100). Always ask for confirmation first.",
		Prompt:      "Assistant wants to adjust system volume.",
		Schema: objectSchema([]string{"level"}, map[string]any{
			"level": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		}),
		validate: validateAdjustVolume,
	},
	KindAskConfirmation: {
		Kind:        KindAskConfirmation,
		Description: "Ask the user for confirmation for a sensitive step.",
		Prompt:      "Assistant requests your confirmation.",
		Schema: objectSchema([]string{"message"}, map[string]any{
			"message": map[string]any{"type": "string"},
		}),
		validate: validateAskConfirmation,
	},
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// ParseKind maps a provider tool name onto a catalog kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := catalog[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownActionKind, name)
	}
	return k, nil
}

// Lookup returns the definition for a kind. The Schema is a copy the caller
// may modify freely.
func Lookup(k Kind) (Definition, error) {
	def, err := lookup(k)
	if err != nil {
		return Definition{}, err
	}
	def.Schema = cloneSchema(def.Schema)
	return def, nil
}

func lookup(k Kind) (Definition, error) {
	def, ok := catalog[k]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownActionKind, string(k))
	}
	return def, nil
}

func cloneSchema(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneSchema(v)
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Kinds returns every catalog kind in a stable order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(catalog))
	for k := range catalog {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// HasSideEffect reports whether confirmed proposals of kind k can be executed.
func HasSideEffect(k Kind) bool {
	return catalog[k].SideEffect
}
