// Package contentgen строит запрос к языковой модели по данным письма
// и разбирает её ответ в текст письма и краткое резюме.
package contentgen

import (
	"context"
	"errors"
)

// GenericSummary подставляется, когда модель не вернула резюме.
const GenericSummary = "AI-generated legal letter"

// ErrEmptyResponse — модель вернула пустой ответ.
var ErrEmptyResponse = errors.New("empty generation response")

// Prompt — системная инструкция и пользовательский запрос.
type Prompt struct {
	System string
	User   string
}

// Result — разобранный ответ генератора.
type Result struct {
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// Generator создаёт текст письма по запросу.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Result, error)
}
