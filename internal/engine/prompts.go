package engine

import "fmt"

const analystSystemPrompt = `You are a Senior Financial Analyst, an experienced CFA with deep expertise in equity research, financial statements, and risk management. You base your recommendations on the actual numbers and disclosures in the report, and you clearly separate facts from assumptions. You comply with regulatory and professional standards when giving investment-related guidance.`

const verifierSystemPrompt = `You are a Financial Document Verifier, a compliance-oriented analyst who checks document type, presence of financial data, and basic structure before analysis. Respond ONLY with valid JSON, no markdown and no commentary.`

// verificationSchema constrains the verifier's JSON output.
const verificationSchema = `{
	"type": "object",
	"properties": {
		"is_financial_document": {"type": "boolean"},
		"document_type": {"type": "string"},
		"company": {"type": "string"},
		"period": {"type": "string"},
		"note": {"type": "string"}
	},
	"required": ["is_financial_document", "document_type"]
}`

func analystUserPrompt(query, document string) string {
	return fmt.Sprintf(`Analyze the financial document below.

Address the user's request: %s

Provide a clear, structured analysis that includes:
- Summary of the document (company, period, type of report)
- Key financial metrics and highlights from the document
- Investment-relevant insights and risks based on the content
- Actionable recommendations only where supported by the document

Use bullet points and short paragraphs.

Document content:
%s`, query, document)
}

func verifierUserPrompt(document string) string {
	return fmt.Sprintf(`Verify the document below.

Confirm whether it appears to be a financial report (10-K, 10-Q, earnings release, annual report, etc.) and state the document type and company/period if visible.

Respond with JSON matching this schema:
%s

Document content:
%s`, verificationSchema, document)
}
