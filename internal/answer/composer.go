package answer

import (
	"context"
	"time"

	"github.com/hyperjump/docuchat/internal/chat"
	"github.com/hyperjump/docuchat/internal/models"
	"go.uber.org/zap"
)

// Composer renders the prompt for a question and invokes the chat model once.
type Composer struct {
	model    chat.Model
	template Template
	logger   *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithTemplate replaces the default prompt template.
func WithTemplate(t Template) Option {
	return func(c *Composer) {
		c.template = t
	}
}

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) {
		c.logger = l
	}
}

// NewComposer returns a composer that answers with model.
func NewComposer(model chat.Model, opts ...Option) *Composer {
	c := &Composer{model: model, template: DefaultTemplate(), logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Prompt returns the exact text that Compose sends to the model.
func (c *Composer) Prompt(retrieved *models.RetrievalResult, question string) string {
	return c.template.Render(BuildContext(retrieved), question)
}

// Compose asks the model to answer question from the retrieved chunks and returns the
// model output unchanged. Model failures are returned as *models.AnswerGenerationError
// and are not retried.
func (c *Composer) Compose(ctx context.Context, retrieved *models.RetrievalResult, question string) (string, error) {
	prompt := c.Prompt(retrieved, question)
	start := time.Now()
	out, err := c.model.Invoke(ctx, prompt)
	if err != nil {
		c.logger.Warn("answer generation failed",
			zap.String("model", c.model.Name()),
			zap.Error(err))
		return "", &models.AnswerGenerationError{Question: question, Err: err}
	}
	c.logger.Debug("answer generated",
		zap.String("model", c.model.Name()),
		zap.Int("context_chunks", retrieved.Len()),
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// ModelName returns the name of the chat model answers come from.
func (c *Composer) ModelName() string { return c.model.Name() }
