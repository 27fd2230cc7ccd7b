package contentgen

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiMaxRetries — число повторов после первой попытки. SDK повторяет
// запрос при 408, 409, 429, 5xx и сетевых ошибках с экспоненциальной паузой.
const openaiMaxRetries = 2

// OpenAIClient вызывает chat completions API и разбирает ответ через ParseResponse.
type OpenAIClient struct {
	apiKey string
	model  string
	client openai.Client
}

// NewOpenAIClient создаёт клиента. baseURL, например https://api.openai.com/v1.
func NewOpenAIClient(apiKey, model, baseURL string, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(openaiMaxRetries),
		option.WithHTTPClient(&http.Client{}),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClient(append(base, opts...)...),
	}
}

// Generate отправляет запрос и разбирает ответ модели.
// Ограничение по времени задаётся контекстом вызывающего.
func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (Result, error) {
	const op = "contentgen.OpenAIClient.Generate"
	if c.apiKey == "" {
		return Result{}, fmt.Errorf("%s: OPENAI_API_KEY not set", op)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	res, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
