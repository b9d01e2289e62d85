package rag

import (
	"fmt"
	"strings"
)

const answerSystemPrompt = "You are IntelliDocs, an AI knowledge assistant. Answer the user question using ONLY the provided context."

func answerPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`CONTEXT:
%s

QUESTION: %s

INSTRUCTIONS:
- Answer based only on the provided context
- If the answer is not in the context, say "This information is not available in the uploaded documents"
- Provide specific citations like [Source: filename.pdf]
- Be concise but complete

ANSWER:`, contextBlock, question)
}

func summaryPrompt(content string) string {
	return fmt.Sprintf(`Create a comprehensive summary of this document. Include:

1. MAIN TOPIC: What this document is about
2. KEY POINTS: 3-5 most important points
3. IMPORTANT DETAILS: Specific policies, procedures, or requirements
4. WHO SHOULD READ THIS: Target audience

Document Content:
%s

Provide a clear, structured summary:`, content)
}

func faqPrompt(content string) string {
	return fmt.Sprintf(`Based on this document, create a FAQ with 5-8 common questions employees might ask.
Format as Q: [Question] A: [Answer]

Document Content:
%s

Generate practical FAQ:`, content)
}

func comparePrompt(name1, text1, name2, text2 string) string {
	return fmt.Sprintf(`Compare these two documents and provide:

1. SIMILARITIES: What's the same between them
2. DIFFERENCES: Key changes or variations
3. NEW ADDITIONS: What's in Document 2 that's not in Document 1
4. REMOVED CONTENT: What's in Document 1 that's not in Document 2
5. SUMMARY: Overall comparison conclusion

Document 1 (%s):
%s

Document 2 (%s):
%s

Provide structured comparison:`, name1, text1, name2, text2)
}

// truncate caps text at max characters, marking the cut.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

func sourceBlock(source, text string) string {
	var sb strings.Builder
	sb.WriteString("[Source: ")
	sb.WriteString(source)
	sb.WriteString("]\n")
	sb.WriteString(text)
	return sb.String()
}
