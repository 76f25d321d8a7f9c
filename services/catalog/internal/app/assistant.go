package app

import (
	"context"
	"errors"
	"strings"

	"smartimmo/internal/util"
	"smartimmo/pkg/ai"
	"smartimmo/pkg/domain"
)

var errEmptyPrompt = newError(ErrBadRequest, "Prompt cannot be empty")

// Ask forwards prompt to the language model. The call is detached from the
// caller's cancellation.
func (a *App) Ask(ctx context.Context, prompt string) (domain.AssistantAnswer, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.AssistantAnswer{}, errEmptyPrompt
	}
	response, err := a.assistant.GenerateText(context.WithoutCancel(ctx), prompt)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyPrompt) {
			return domain.AssistantAnswer{}, errEmptyPrompt
		}
		util.LoggerFromContext(ctx).Warn("assistant_request_failed", "model", a.assistant.ModelName(), "err", err)
		return domain.AssistantAnswer{}, newError(ErrUpstreamUnavailable, "Assistant unavailable")
	}
	return domain.AssistantAnswer{Response: response, Model: a.assistant.ModelName()}, nil
}
