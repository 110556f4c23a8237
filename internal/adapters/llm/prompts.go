package llm

import "fmt"

const (
	questionTemperature float32 = 0.7
	analysisTemperature float32 = 0.3
)

const systemPrompt = "You are an English language tutor helping a learner practice reading comprehension. " +
	"Follow the requested output format exactly and add nothing else."

func questionsPrompt(passage string, n int) string {
	return fmt.Sprintf(`Based on the following English passage, generate %d reading comprehension questions.
The questions should test the reader's understanding of the main ideas, details, and implications in the text.
Only return the questions as a numbered list, with no additional text.

Passage:
%s`, n, passage)
}

func assessmentPrompt(passage, question, answer string) string {
	return fmt.Sprintf(`Analyze the student's answer to a reading comprehension question.

Passage:
%s

Question:
%s

Student's answer:
%s

Score each dimension from 0 to 100:
- accuracy: is the content correct according to the passage?
- completeness: does it answer every part of the question?
- clarity: is it easy to follow?
- language: grammar, vocabulary and expression.

Return only JSON with this structure:
{
  "scores": {"accuracy": 0, "completeness": 0, "clarity": 0, "language": 0},
  "errors": [{"span": "text from the answer", "kind": "grammar|vocabulary|content", "suggestion": "correction"}],
  "feedback": "short feedback for the student",
  "improved_answer": "a model answer for reference"
}`, passage, question, answer)
}

func vocabularyPrompt(passage string, limit int) string {
	return fmt.Sprintf(`List up to %d words or short phrases from the passage below that an intermediate English learner may not know.
Return only a JSON array of strings, as they appear in the passage.

Passage:
%s`, limit, passage)
}

func definitionPrompt(term string) string {
	return fmt.Sprintf(`Provide the definition and usage examples for the English word %q.
Include the part of speech, a clear definition, and 3 example sentences.

Return only JSON with this structure:
{
  "definition": "part_of_speech: the meaning of the word",
  "examples": ["example sentence 1", "example sentence 2", "example sentence 3"]
}`, term)
}
