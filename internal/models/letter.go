package models

import "time"

// LetterStatus — состояние письма в жизненном цикле.
type LetterStatus string

const (
	LetterRequested  LetterStatus = "requested"
	LetterGenerating LetterStatus = "generating"
	LetterReviewing  LetterStatus = "reviewing"
	LetterCompleted  LetterStatus = "completed"
	LetterDownloaded LetterStatus = "downloaded"
)

// Address — почтовый адрес отправителя или получателя.
type Address struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	Zip     string `json:"zip" validate:"required,max=20"`
	Country string `json:"country,omitempty" validate:"max=100"`
}

// WithDefaults подставляет страну по умолчанию.
func (a Address) WithDefaults() Address {
	if a.Country == "" {
		a.Country = "USA"
	}
	return a
}

// Letter — заявка на письмо и всё, что с ней происходило.
type Letter struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"userId"`
	SubscriptionID     string       `json:"subscriptionId"`
	Title              string       `json:"title"`
	SenderName         string       `json:"senderName"`
	SenderFirmName     string       `json:"senderFirmName,omitempty"`
	SenderAddress      Address      `json:"senderAddress"`
	RecipientName      string       `json:"recipientName"`
	RecipientAddress   Address      `json:"recipientAddress"`
	Subject            string       `json:"subject"`
	Conflict           string       `json:"conflict"`
	DesiredResolution  string       `json:"desiredResolution"`
	AdditionalNotes    string       `json:"additionalNotes,omitempty"`
	AIPrompt           string       `json:"aiPrompt,omitempty"`
	AIGeneratedContent string       `json:"aiGeneratedContent,omitempty"`
	AISummary          string       `json:"aiSummary,omitempty"`
	FinalContent       string       `json:"finalContent,omitempty"`
	Status             LetterStatus `json:"status"`
	AdminNotes         string       `json:"adminNotes,omitempty"`
	ReviewedBy         string       `json:"reviewedBy,omitempty"`
	PDFPath            string       `json:"pdfPath,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	AIGeneratedAt      *time.Time   `json:"aiGeneratedAt,omitempty"`
	ReviewedAt         *time.Time   `json:"reviewedAt,omitempty"`
	CompletedAt        *time.Time   `json:"completedAt,omitempty"`
	DownloadedAt       *time.Time   `json:"downloadedAt,omitempty"`
}

// Body возвращает текст для итогового документа: отредактированный
// юристом вариант, а при его отсутствии сгенерированный.
func (l *Letter) Body() string {
	if l.FinalContent != "" {
		return l.FinalContent
	}
	return l.AIGeneratedContent
}

// HasDocument сообщает, есть ли у письма отрисованный документ.
func (l *Letter) HasDocument() bool {
	return l.PDFPath != ""
}

// LetterRequest — входные данные для создания письма.
type LetterRequest struct {
	Title             string  `json:"title" validate:"required,max=200"`
	SenderName        string  `json:"senderName" validate:"required,max=200"`
	SenderFirmName    string  `json:"senderFirmName,omitempty" validate:"max=200"`
	SenderAddress     Address `json:"senderAddress" validate:"required"`
	RecipientName     string  `json:"recipientName" validate:"required,max=200"`
	RecipientAddress  Address `json:"recipientAddress" validate:"required"`
	Subject           string  `json:"subject" validate:"required,max=300"`
	Conflict          string  `json:"conflict" validate:"required,max=10000"`
	DesiredResolution string  `json:"desiredResolution" validate:"required,max=5000"`
	AdditionalNotes   string  `json:"additionalNotes,omitempty" validate:"max=5000"`
}

// LetterUpdate — изменения, которые администратор вносит при проверке.
// Nil-поля не изменяются.
type LetterUpdate struct {
	Status       *LetterStatus `json:"status,omitempty" validate:"omitempty,oneof=reviewing completed"`
	FinalContent *string       `json:"finalContent,omitempty" validate:"omitempty,max=50000"`
	AdminNotes   *string       `json:"adminNotes,omitempty" validate:"omitempty,max=5000"`
	Title        *string       `json:"title,omitempty" validate:"omitempty,max=200"`
	Subject      *string       `json:"subject,omitempty" validate:"omitempty,max=300"`
}

// Merge возвращает копию письма с наложенными изменениями.
// Используется для отрисовки документа до сохранения обновления.
func (l Letter) Merge(u LetterUpdate) Letter {
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.FinalContent != nil {
		l.FinalContent = *u.FinalContent
	}
	if u.AdminNotes != nil {
		l.AdminNotes = *u.AdminNotes
	}
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.Subject != nil {
		l.Subject = *u.Subject
	}
	return l
}

// LetterPatch — частичное обновление письма на уровне хранилища.
type LetterPatch struct {
	Status       *LetterStatus
	FinalContent *string
	AdminNotes   *string
	Title        *string
	Subject      *string
	ReviewedBy   *string
	PDFPath      *string
	ReviewedAt   *time.Time
	CompletedAt  *time.Time
}

// GenerationResult — сгенерированное содержимое, фиксируемое вместе со списанием кредита.
type GenerationResult struct {
	Prompt      string
	Content     string
	Summary     string
	GeneratedAt time.Time
}

// LetterEvent публикуется в очередь уведомлений при завершении письма.
type LetterEvent struct {
	LetterID string `json:"letterId"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}
