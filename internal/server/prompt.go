package server

import (
	"fmt"
	"strings"

	"github.com/nexusai/nexus/internal/budget"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/store"
)

const (
	// maxMessageLength is the ceiling on a single user message.
	maxMessageLength = 5000

	// historyMessages is how many prior turns are considered for context.
	historyMessages = 10

	// historyPreviewChars truncates long history entries to save tokens.
	historyPreviewChars = 500
)

// groundedInstruction is the system instruction used when document context
// was retrieved for the question.
const groundedInstruction = `You are Nexus, an intelligent document analysis assistant.

UPLOADED DOCUMENTS: %s

INSTRUCTIONS:
- Answer questions using the DOCUMENT CONTEXT below as your primary source.
- Use CONVERSATION HISTORY to understand follow-up questions and maintain continuity.
- If the answer is in the document, cite it. If not found, clearly state that.
- For questions unrelated to the document (greetings, general knowledge), respond helpfully but note it's not from the document.
- Be concise, accurate, and helpful.

%s`

// noMatchInstruction is used when the session has documents but retrieval
// found nothing relevant to the question.
const noMatchInstruction = `You are Nexus. The user uploaded documents (%s) but no relevant content was found for this query.

INSTRUCTIONS:
- If asking about the document: suggest rephrasing or asking about specific topics.
- If general conversation: respond helpfully using conversation history.
- Never fabricate document content.`

// generalInstruction is used for sessions with no uploaded documents.
const generalInstruction = `You are Nexus, a knowledgeable and friendly AI assistant.

INSTRUCTIONS:
- Engage naturally in conversation and answer questions accurately.
- Use conversation history to understand context and follow-ups.
- Be helpful, concise, and informative.`

// composePrompt assembles the full prompt for one chat turn: system
// instruction, trimmed conversation history, and the user message. docNames
// lists the session's documents; passages is the retrieved context, empty
// outside grounded mode.
func composePrompt(message string, history []store.Message, docNames []string, passages []rag.Chunk) string {
	var instruction string
	switch {
	case len(passages) > 0:
		instruction = fmt.Sprintf(groundedInstruction,
			strings.Join(docNames, ", "), rag.ContextBlock(passages))
	case len(docNames) > 0:
		instruction = fmt.Sprintf(noMatchInstruction, strings.Join(docNames, ", "))
	default:
		instruction = generalInstruction
	}

	var b strings.Builder
	b.WriteString(instruction)

	fixed := budget.Estimate(instruction) + budget.Estimate(message)
	history = budget.TrimHistory(history, fixed, budget.DefaultMaxContextTokens)
	if len(history) > 0 {
		b.WriteString("\n\n[CONVERSATION HISTORY]\n")
		for _, m := range history {
			label := "User"
			if m.Role == store.RoleAssistant {
				label = "Nexus"
			}
			content := m.Content
			if runes := []rune(content); len(runes) > historyPreviewChars {
				content = string(runes[:historyPreviewChars]) + "..."
			}
			fmt.Fprintf(&b, "%s: %s\n", label, content)
		}
	}

	b.WriteString("\n[USER MESSAGE]\n")
	b.WriteString(message)
	return b.String()
}
