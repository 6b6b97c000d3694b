// Prompt construction for research chat requests.

package chat

import (
	"fmt"
	"strings"

	"github.com/richinex/lectern/citation"
)

// systemPrompt frames every conversation.
const systemPrompt = `You are a research assistant helping a user read and discuss academic papers. Answer questions about the document under discussion, ground claims in the text, and use the paper search tools when the user asks about related or cited work. Be concise and cite paper titles and years when you mention them.`

// buildCitationPrompt constructs the user-facing request for a
// citation-grounded question. When the citation resolved, the matched
// bibliography entry anchors the prompt; otherwise the model is told
// explicitly that the marker could not be matched.
func buildCitationPrompt(citationText, userText string, ref *citation.Reference) string {
	var sb strings.Builder

	if ref != nil {
		sb.WriteString(fmt.Sprintf("The user highlighted the citation %q in the document. It resolves to this bibliography entry:\n\n", citationText))
		sb.WriteString(ref.RawText)
		sb.WriteString("\n")
		if ref.Year != "" {
			sb.WriteString(fmt.Sprintf("\nPublication year: %s\n", ref.Year))
		}
		if ref.Title != "" {
			sb.WriteString(fmt.Sprintf("Title: %s\n", ref.Title))
		}
	} else {
		sb.WriteString(fmt.Sprintf("The user highlighted the citation %q in the document, but it could not be matched to any bibliography entry. Answer from context, and say so if you cannot identify the cited work.\n", citationText))
	}

	sb.WriteString("\nUser request: ")
	sb.WriteString(userText)
	return sb.String()
}
