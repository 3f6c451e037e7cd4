package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// extractionPrompt builds the shared prompt so both providers return the
// same JSON schema.
func extractionPrompt(documentText string) string {
	currentDate := time.Now().Format("2006-01-02")

	return fmt.Sprintf(`You are a legal assistant that extracts key terms from contracts and legal correspondence.

TODAY'S DATE: %s

INSTRUCTIONS:
1. Read the document and extract the fields below.
2. Return a single JSON object, no other text.
3. Dates must be ISO 8601 (YYYY-MM-DD). Omit fields you cannot find.
4. Obligations are concrete duties with an optional due date and responsible party.
5. Amounts are monetary values with a currency code (USD, EUR, ...).

JSON SCHEMA:
{
  "parties": ["string"],
  "effective_date": "YYYY-MM-DD",
  "expiration_date": "YYYY-MM-DD",
  "renewal_notice_days": 0,
  "obligations": [{"description": "string", "party": "string", "due_date": "YYYY-MM-DD"}],
  "amounts": [{"description": "string", "value": 0, "currency": "USD"}],
  "governing_law": "string",
  "summary": "one sentence, plain English"
}

DOCUMENT:
%s

JSON OUTPUT:`, currentDate, documentText)
}

type rawObligation struct {
	Description string `json:"description"`
	Party       string `json:"party"`
	DueDate     string `json:"due_date"`
}

type rawExtraction struct {
	Parties           []string           `json:"parties"`
	EffectiveDate     string             `json:"effective_date"`
	ExpirationDate    string             `json:"expiration_date"`
	RenewalNoticeDays int                `json:"renewal_notice_days"`
	Obligations       []rawObligation    `json:"obligations"`
	Amounts           []AmountExtraction `json:"amounts"`
	GoverningLaw      string             `json:"governing_law"`
	Summary           string             `json:"summary"`
}

// parseExtraction turns an LLM response into a TermExtraction. Models wrap
// JSON in markdown fences or prose, so locate the outermost object first.
func parseExtraction(responseText string) (*TermExtraction, error) {
	responseText = strings.TrimSpace(responseText)
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
	}
	responseText = strings.TrimSpace(responseText)

	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON object in response")
	}
	responseText = responseText[jsonStart : jsonEnd+1]

	var raw rawExtraction
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %v", err)
	}

	extraction := &TermExtraction{
		Parties:           raw.Parties,
		RenewalNoticeDays: raw.RenewalNoticeDays,
		Amounts:           raw.Amounts,
		GoverningLaw:      raw.GoverningLaw,
		Summary:           raw.Summary,
	}
	extraction.EffectiveDate = parseDate(raw.EffectiveDate)
	extraction.ExpirationDate = parseDate(raw.ExpirationDate)

	for _, ro := range raw.Obligations {
		if ro.Description == "" {
			continue
		}
		extraction.Obligations = append(extraction.Obligations, ObligationExtraction{
			Description: ro.Description,
			Party:       ro.Party,
			DueDate:     parseDate(ro.DueDate),
		})
	}

	return extraction, nil
}

func parseDate(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}
	formats := []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02T15:04:05", "2006-01-02"}
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return &t
		}
	}
	return nil
}
