package contentgen

import (
	"strings"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const systemInstruction = "You are a professional legal assistant specializing in drafting formal legal correspondence. " +
	"Generate professional, legally sound letters with appropriate formatting and language."

// BuildPrompt собирает детерминированный запрос из полей письма.
func BuildPrompt(l models.Letter) Prompt {
	var b strings.Builder
	b.WriteString("Generate a professional legal letter with the following details:\n\n")

	b.WriteString("Sender: ")
	b.WriteString(l.SenderName)
	if l.SenderFirmName != "" {
		b.WriteString(" from ")
		b.WriteString(l.SenderFirmName)
	}
	b.WriteString("\n")
	writeLine(&b, "Recipient", l.RecipientName)
	writeLine(&b, "Subject", l.Subject)
	writeLine(&b, "Conflict", l.Conflict)
	writeLine(&b, "Desired Resolution", l.DesiredResolution)
	if notes := strings.TrimSpace(l.AdditionalNotes); notes != "" {
		writeLine(&b, "Additional Notes", notes)
	}

	b.WriteString("\nPlease format this as a formal legal letter with proper legal language and structure. ")
	b.WriteString("Include appropriate legal terminology and maintain a professional tone throughout. ")
	b.WriteString("The letter should clearly state the issue, reference relevant facts, and specify the desired resolution.\n\n")
	b.WriteString("Return the response in JSON format with the following structure:\n")
	b.WriteString(`{"content": "The full letter content", "summary": "Brief summary of the letter"}`)

	return Prompt{System: systemInstruction, User: b.String()}
}

func writeLine(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
