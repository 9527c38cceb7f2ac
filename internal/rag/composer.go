package rag

import (
	"context"
	"fmt"
	"strings"

	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
)

const defaultPerspective = "General labour law compliance"

// Composer produces the final, citation-constrained answer.
type Composer struct {
	llm llmservice.Completer
}

func NewComposer(llm llmservice.Completer) *Composer {
	return &Composer{llm: llm}
}

// Prompt fills the analyst template.
func Prompt(perspective, history, retrieved, question string) string {
	perspective = strings.TrimSpace(perspective)
	if perspective == "" {
		perspective = defaultPerspective
	}
	if strings.TrimSpace(history) == "" {
		history = models.NoPriorConversation
	}
	return fmt.Sprintf(models.AnswerPromptTemplate, perspective, history, retrieved, question)
}

// Compose asks the model to answer question from the retrieved context.
func (c *Composer) Compose(ctx context.Context, perspective, history, retrieved, question string) (string, error) {
	answer, err := c.llm.Complete(ctx, Prompt(perspective, history, retrieved, question))
	if err != nil {
		return "", fmt.Errorf("failed to compose answer: %w", err)
	}
	return answer, nil
}
