package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"future-you/internal/domain"
	"future-you/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// historyWindow — сколько последних реплик передаётся модели.
const historyWindow = 10

// OpenAI реализует компаньона через OpenAI Chat Completions.
type OpenAI struct {
	client       chatClient
	model        string
	emotionModel string
	timeout      time.Duration
}

var _ domain.CompanionModel = (*OpenAI)(nil)

// NewOpenAI создаёт компаньона. emotionModel используется для распознавания эмоции.
func NewOpenAI(client chatClient, model, emotionModel string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if emotionModel == "" {
		emotionModel = model
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: client, model: model, emotionModel: emotionModel, timeout: timeout}
}

func (o *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	return resp.FirstContent()
}

// Reply отвечает на реплику пользователя с учётом истории разговора.
func (o *OpenAI) Reply(ctx context.Context, req domain.CompanionReplyRequest) (string, error) {
	system := personalityPrompt(req.Personality) + "\n\n" + appPrompt
	if req.UserName != "" {
		system += "\n\nThe user's name is " + req.UserName + "."
	}
	if strings.TrimSpace(req.Instructions) != "" {
		system += "\n\nAdditional instructions: " + strings.TrimSpace(req.Instructions)
	}
	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]openai.ChatMessage, 0, 2*len(history)+2)
	messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: system})
	for _, ex := range history {
		messages = append(messages,
			openai.ChatMessage{Role: openai.RoleUser, Content: ex.UserMessage},
			openai.ChatMessage{Role: openai.RoleAssistant, Content: ex.CompanionResponse},
		)
	}
	messages = append(messages, openai.ChatMessage{Role: openai.RoleUser, Content: req.Message})
	return o.complete(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0.8,
		MaxTokens:   300,
	})
}

// DetectEmotion определяет эмоциональный тон текста одним словом.
func (o *OpenAI) DetectEmotion(ctx context.Context, text string) (string, error) {
	word, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.emotionModel,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: emotionPrompt},
			{Role: openai.RoleUser, Content: text},
		},
		Temperature: 0.3,
		MaxTokens:   10,
	})
	if err != nil {
		return "", err
	}
	return domain.NormalizeEmotion(word), nil
}

// DailyCheckIn формирует короткое приветствие на день.
func (o *OpenAI) DailyCheckIn(ctx context.Context, personality domain.CompanionPersonality, userName string) (string, error) {
	system := personalityPrompt(personality) + `

Generate a brief, warm daily check-in message (2-3 sentences) for the user.
Ask an engaging question or offer a thoughtful prompt for the day.`
	if userName != "" {
		system += " The user's name is " + userName + "."
	}
	return o.complete(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    []openai.ChatMessage{{Role: openai.RoleSystem, Content: system}},
		Temperature: 0.9,
		MaxTokens:   100,
	})
}

// CraftMessage предлагает черновик письма в будущее.
func (o *OpenAI) CraftMessage(ctx context.Context, personality domain.CompanionPersonality, intent string) (domain.CraftedMessage, error) {
	system := personalityPrompt(personality) + `

The user wants to create a message to their future self. Help them craft something meaningful.
Provide a draft message they can use or modify, a suggested delivery timing and why this message matters.
Format as JSON with keys: draft_message, suggested_timing, reasoning.

User's intent: ` + intent
	content, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model:          o.model,
		Messages:       []openai.ChatMessage{{Role: openai.RoleSystem, Content: system}},
		Temperature:    0.7,
		MaxTokens:      400,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return domain.CraftedMessage{}, err
	}
	var crafted domain.CraftedMessage
	if err := json.Unmarshal([]byte(content), &crafted); err != nil {
		return domain.CraftedMessage{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	if strings.TrimSpace(crafted.Draft) == "" {
		return domain.CraftedMessage{}, fmt.Errorf("распаковка ответа LLM: пустой черновик")
	}
	return crafted, nil
}
