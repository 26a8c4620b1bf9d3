package models

import "time"

// PolicyFieldCount is the fixed number of fields extracted from a policy document.
const PolicyFieldCount = 7

// PolicyFields holds the structured data read from the first page of a scanned policy.
type PolicyFields struct {
	// Payment recipient (insurer side)
	RecipientName        string // Name of the payment recipient
	RecipientAddress     string // Postal address of the recipient
	RecipientBankAccount string // 26-character bank account number, whitespace removed
	PaymentAmount        string // Premium amount as printed, without currency

	// Payer (policy holder side)
	PayerCompany string // Company name including the legal-form suffix
	PolicyNumber string // Policy number as printed
	PayerAddress string // Postal address of the payer
}

// Values returns the fields in report order.
func (f PolicyFields) Values() []string {
	return []string{
		f.RecipientName,
		f.RecipientAddress,
		f.RecipientBankAccount,
		f.PaymentAmount,
		f.PayerCompany,
		f.PolicyNumber,
		f.PayerAddress,
	}
}

// Map applies fn to every field and returns the result.
func (f PolicyFields) Map(fn func(string) string) PolicyFields {
	return PolicyFields{
		RecipientName:        fn(f.RecipientName),
		RecipientAddress:     fn(f.RecipientAddress),
		RecipientBankAccount: fn(f.RecipientBankAccount),
		PaymentAmount:        fn(f.PaymentAmount),
		PayerCompany:         fn(f.PayerCompany),
		PolicyNumber:         fn(f.PolicyNumber),
		PayerAddress:         fn(f.PayerAddress),
	}
}

// PolicyRecord ties extracted fields to the document they came from.
type PolicyRecord struct {
	SourceFile string       `json:"source_file"`
	Fields     PolicyFields `json:"fields"`

	// Attempts is the number of OCR passes needed before the cascade matched.
	Attempts    int       `json:"attempts"`
	ProcessedAt time.Time `json:"processed_at"`
}
