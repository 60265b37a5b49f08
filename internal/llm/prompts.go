package llm

import "fmt"

// FactExtractionPrompt asks for subject-predicate-object triples as a bare
// JSON array.
func FactExtractionPrompt(content string) string {
	return fmt.Sprintf(`TASK: Extract factual statements from the text as subject-predicate-object triples.
OUTPUT: ONLY a JSON array. NO markdown. NO code blocks. NO explanations.

Each element MUST be an object with these fields:
  "subject":    short noun phrase (a person, project, tool, place or organization)
  "predicate":  short lowercase verb phrase, e.g. "uses", "prefers", "works at", "is"
  "object":     short noun phrase
  "confidence": number between 0 and 1

Rules:
- Only facts stated in the text. Do not infer.
- Skip questions, opinions about the conversation, and instructions.
- Return [] when there are no facts.

TEXT:
%s

JSON:`, content)
}
