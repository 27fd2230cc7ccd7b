package contentgen

import (
	"encoding/json"
	"strings"
)

// ParseResponse разбирает ответ модели. Допускает markdown-ограждение вокруг JSON.
// Если JSON не разбирается или в нём нет содержимого, весь текст считается
// письмом, а резюме берётся из ответа либо GenericSummary.
// Ошибка возвращается только для пустого ответа.
func ParseResponse(raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{}, ErrEmptyResponse
	}

	var res Result
	if err := json.Unmarshal([]byte(stripFence(text)), &res); err != nil || strings.TrimSpace(res.Content) == "" {
		summary := GenericSummary
		if err == nil && strings.TrimSpace(res.Summary) != "" {
			summary = strings.TrimSpace(res.Summary)
		}
		return Result{Content: text, Summary: summary}, nil
	}

	res.Content = strings.TrimSpace(res.Content)
	res.Summary = strings.TrimSpace(res.Summary)
	if res.Summary == "" {
		res.Summary = GenericSummary
	}
	return res, nil
}

// stripFence убирает ```json ... ``` вокруг текста.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
