package factory

import (
	"fmt"

	"github.com/tradingpro/pulse/internal/config"
	"github.com/tradingpro/pulse/internal/llm"
	"github.com/tradingpro/pulse/internal/llm/claude"
	"github.com/tradingpro/pulse/internal/llm/openai"
)

// New creates an LLM provider based on configuration. An empty
// provider returns (nil, nil): scoring then runs on defaults only.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
