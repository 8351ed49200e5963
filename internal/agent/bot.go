package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const systemPrompt = `You are a helpful weather assistant.
1. You ONLY answer questions about weather.
2. If a user asks about non-weather topics, politely refuse.
3. Use the provided tools to fetch real data. Do not guess.
4. When answering, be concise and professional.`

// Bot is the conversational front end: an OpenAI chat-completions loop that
// lets the model call the weather tools and then phrases the final answer.
type Bot struct {
	client openai.Client
	model  string
	router *Router
}

func NewBot(apiKey, model string, router *Router) *Bot {
	return &Bot{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		router: router,
	}
}

func toolDefs() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        ToolCurrentWeather,
			Description: openai.String("Get the current weather for a specific city. Use this for questions like 'What is the weather in Tokyo?'"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{
						"type":        "string",
						"description": "The name of the city, e.g. London, Tokyo, Colombo",
					},
				},
				"required": []string{"city"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        ToolHistory,
			Description: openai.String("Get historical weather data for a city over the last N days. Use this for averages, trends, or past weather."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{
						"type":        "string",
						"description": "The name of the city",
					},
					"days": map[string]any{
						"type":        "integer",
						"description": "Number of days to look back (default 7)",
						"default":     DefaultHistoryDays,
					},
				},
				"required": []string{"city"},
			},
		}),
	}
}

// Chat processes one user message, handling a single tool round: request,
// execute any requested tools, then request the final phrasing.
func (b *Bot) Chat(ctx context.Context, userMessage string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		Tools: toolDefs(),
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		// No tool needed, e.g. a refusal.
		return msg.Content, nil
	}

	params.Messages = append(params.Messages, msg.ToParam())
	for _, call := range msg.ToolCalls {
		output := b.router.Execute(ctx, call.Function.Name, call.Function.Arguments)
		params.Messages = append(params.Messages, openai.ToolMessage(output, call.ID))
	}

	final, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion after tools: %w", err)
	}
	if len(final.Choices) == 0 {
		return "", errors.New("empty completion response after tools")
	}
	return final.Choices[0].Message.Content, nil
}
