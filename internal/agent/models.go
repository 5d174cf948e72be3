package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	logx "github.com/onwardjourney/agent/pkg/logger"
)

// ChatModel is the narrow surface the orchestrator needs from a provider.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	RespConfig *ResponseModelConfig
	TriageCfg  *TriageModelConfig
}

// ChatModels holds the tool-bound response model and the low-temperature
// triage extraction model, built from one shared Gemini client.
type ChatModels struct {
	Response          *gemini.ChatModel
	Triage            *gemini.ChatModel
	Client            *genai.Client
	ResponseModelName string
	TriageModelName   string
}

// NewChatModels creates both response and triage chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	chatModelTriage, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.TriageCfg.Model,
		Temperature: &config.TriageCfg.Temperature,
		MaxTokens:   &config.TriageCfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating triage model")
		return nil, fmt.Errorf("error creating triage model: %w", err)
	}

	return &ChatModels{
		Response:          chatModelResponse,
		Triage:            chatModelTriage,
		Client:            client,
		ResponseModelName: config.RespConfig.Model,
		TriageModelName:   config.TriageCfg.Model,
	}, nil
}

// BindToolsToResponseModel binds tools to the response chat model
func (cm *ChatModels) BindToolsToResponseModel(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.Response.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Msg("Successfully bound tools to response model")
	return nil
}
