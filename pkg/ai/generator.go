package ai

import "context"

// TextGenerator turns a natural-language prompt into a completion.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	ModelName() string
}
