package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/capitalize-ai/ace-assistant/internal/action"
	"github.com/capitalize-ai/ace-assistant/internal/llm"
	"github.com/capitalize-ai/ace-assistant/internal/transcript"
)

// BuildMessages converts the transcript into provider messages. Each
// proposal part of an assistant entry becomes a tool call followed by its
// tool result: the user's decision if there is one, the readiness
// acknowledgement otherwise. User entries that only record a decision carry
// nothing for the provider and are skipped.
func BuildMessages(t *transcript.Transcript, proposals *action.Registry) []llm.ChatMessage {
	var msgs []llm.ChatMessage
	for _, e := range t.Entries() {
		switch e.Role {
		case transcript.RoleAssistant:
			msg := llm.ChatMessage{Role: llm.RoleAssistant, Content: e.Text()}
			var results []llm.ChatMessage
			for _, p := range e.Parts {
				a, ok := p.(*transcript.Action)
				if !ok {
					continue
				}
				args := a.Input
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: a.ProposalID, Name: string(a.Kind), Arguments: args})

				output, ok := proposals.ProviderOutput(a.ProposalID)
				if !ok {
					output = a.Output
				}
				results = append(results, llm.ChatMessage{Role: llm.RoleTool, ToolCallID: a.ProposalID, Content: output})
			}
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
			msgs = append(msgs, msg)
			msgs = append(msgs, results...)

		default:
			msg := userMessage(e)
			if msg.Content == "" && len(msg.Images) == 0 {
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func userMessage(e transcript.Entry) llm.ChatMessage {
	var texts []string
	var images []llm.Image
	for _, p := range e.Parts {
		switch v := p.(type) {
		case *transcript.Text:
			texts = append(texts, v.Text)
		case *transcript.File:
			if strings.HasPrefix(v.MediaType, "image/") {
				images = append(images, llm.Image{URL: v.Data, MediaType: v.MediaType})
				continue
			}
			name := v.Filename
			if name == "" {
				name = "file"
			}
			texts = append(texts, fmt.Sprintf("[Attached %s (%s)]", name, v.MediaType))
		}
	}
	content := strings.Join(texts, "\n")
	if e.Role == transcript.RoleSystem && content != "" {
		content = "System: " + content
	}
	return llm.ChatMessage{Role: llm.RoleUser, Content: content, Images: images}
}
