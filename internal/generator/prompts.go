package generator

import (
	"fmt"
	"strings"

	"github.com/upsc-prep/backend/internal/models"
)

const ModelAnswerSystemPrompt = "You are an expert UPSC coach who creates model answers for UPSC aspirants."

const SimilaritySystemPrompt = "You are a strict UPSC examiner. You compare a candidate's answer with a model answer and reply with JSON only."

// ModelAnswerPrompt wraps a question (or a caller-built instruction) in the
// coaching template used for every model-answer request.
func ModelAnswerPrompt(topic, question string) string {
	return fmt.Sprintf(`As an expert UPSC coach, provide a comprehensive model answer for the following UPSC question:

Topic: %s
Question: %s

Your answer should:
1. Have a clear introduction that frames the issue
2. Include relevant facts, data points, and historical context
3. Present multiple perspectives on the issue
4. Incorporate case studies or real-world examples
5. Conclude with a balanced viewpoint
6. Follow UPSC answer writing practice (structure, precision, balance)
7. Be around 250-300 words (Mains standard)`, topic, question)
}

// mcqKeyInstruction marks an answer-key request; the mock client keys off it.
const mcqKeyInstruction = "This is a multiple choice question. Please provide ONLY the correct option letter (A, B, C, or D) without any explanation."

// MCQKeyQuestion builds the question text that asks for the option letter only.
func MCQKeyQuestion(q *models.ExamQuestion) string {
	var sb strings.Builder
	sb.WriteString(mcqKeyInstruction)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(q.QuestionText)
	sb.WriteString("\nOptions:\n")
	for i, opt := range q.Options {
		fmt.Fprintf(&sb, "%s. %s\n", models.OptionLetter(i), opt)
	}
	return sb.String()
}

// ReferenceAnswerQuestion builds the question text for a descriptive
// reference answer sized to the question's marks.
func ReferenceAnswerQuestion(q *models.ExamQuestion) string {
	return fmt.Sprintf("%s\n\n(%s %s question, %d marks. Write the answer an examiner would award full marks.)",
		q.QuestionText, q.ExamType, strings.ReplaceAll(string(q.QuestionType), "_", " "), q.Marks)
}

// SimilarityPrompt asks the examiner model to grade userAnswer against correctAnswer.
func SimilarityPrompt(userAnswer, correctAnswer string, maxMarks int) string {
	return fmt.Sprintf(`Compare the candidate's answer with the model answer for a question worth %d marks.

Model answer:
%s

Candidate answer:
%s

Judge coverage of the model answer's key points, accuracy, and structure.
Respond with a single JSON object and nothing else:
{"similarity_score": <number between 0 and 1>, "awarded_marks": <number between 0 and %d>, "feedback": "<two or three sentences: key points covered and areas for improvement>"}`,
		maxMarks, correctAnswer, userAnswer, maxMarks)
}
