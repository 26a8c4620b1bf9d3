package extract

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"docauto/pkg/models"
)

// Template describes where the fields live in the OCR text of one document type.
//
// Extraction runs three stages. Payer runs over the full text and yields company, policy
// number and company address. Section isolates the payment block from the full text.
// Recipient runs over that block and yields recipient name, address, bank account and
// amount.
type Template struct {
	Payer     Cascade
	Section   Cascade
	Recipient Cascade

	// PayerSuffix is appended to the first payer field (the company name).
	PayerSuffix string

	// Replacements are applied in order to every field after extraction.
	Replacements []Replacement
}

// Replacement substitutes Old with New.
type Replacement struct {
	Old string
	New string
}

// Stage sizes of the policy template.
const (
	payerFields     = 3
	sectionFields   = 1
	recipientFields = 4
)

// PolishPolicyTemplate returns the template for the Polish insurance policy scans the tool
// was built for.
func PolishPolicyTemplate() Template {
	return Template{
		Payer: MustCascade("payer", NoStrip,
			[]string{"payer_company", "policy_number", "payer_address"},
			`\nUbezpieczający\n(.*?)SPÓŁKA Z OGRANICZONĄ\nODPOWIEDZIALNOŚCIĄ\n`,
			`(?:numer polisy:|Polisa nr)\s*(\d+)\n`,
			`\n\nadres:\s*(.*?)\ne-mail`,
		),
		Section: MustCascade("section", NoStrip,
			[]string{"payment_section"},
			`\n\nPłatności\n\n(.*?)(\nóżnica:|termin płatności:)`,
		),
		Recipient: MustCascade("recipient", 2,
			[]string{"recipient_name", "recipient_address", "recipient_bank_account", "payment_amount"},
			`\n*\s*odbiorca:\s*(.*?)\n`,
			`SA\n(.*?)\nnr rachunku:`,
			`\nnr rachunku:\s*(.*?)\ntytuł`,
			`(?:kwota:|składka przed zmianą:|składka po zmianie:)\s*(\d+)\s?(?:zł|zl)`,
		),
		PayerSuffix: " sp. z o.o.",
		Replacements: []Replacement{
			{Old: "\n", New: ""},
			{Old: "ALEJA", New: "al"},
		},
	}
}

// Extractor applies a Template to OCR text.
type Extractor struct {
	tpl Template
	log zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(tpl Template, log zerolog.Logger) *Extractor {
	return &Extractor{tpl: tpl, log: log}
}

// Extract returns the seven policy fields found in text. Stage counts are enforced with
// *ArityError; malformed content yields *ValidationError.
func (e *Extractor) Extract(text string) (models.PolicyFields, error) {
	text = norm.NFC.String(text)

	payer, err := e.tpl.Payer.Apply(text, e.log)
	if err != nil {
		return models.PolicyFields{}, err
	}
	if len(payer) != payerFields {
		return models.PolicyFields{}, &ArityError{Stage: e.tpl.Payer.Name, Want: payerFields, Got: len(payer)}
	}
	payer[0] += e.tpl.PayerSuffix

	section, err := e.tpl.Section.Apply(text, e.log)
	if err != nil {
		return models.PolicyFields{}, err
	}
	if len(section) != sectionFields {
		return models.PolicyFields{}, &ArityError{Stage: e.tpl.Section.Name, Want: sectionFields, Got: len(section)}
	}

	recipient, err := e.tpl.Recipient.Apply(section[0], e.log)
	if err != nil {
		return models.PolicyFields{}, err
	}
	if len(recipient) != recipientFields {
		return models.PolicyFields{}, &ArityError{Stage: e.tpl.Recipient.Name, Want: recipientFields, Got: len(recipient)}
	}

	all := append(recipient, payer...)
	if len(all) != models.PolicyFieldCount {
		return models.PolicyFields{}, &ArityError{Stage: "total", Want: models.PolicyFieldCount, Got: len(all)}
	}

	fields := models.PolicyFields{
		RecipientName:        all[0],
		RecipientAddress:     all[1],
		RecipientBankAccount: all[2],
		PaymentAmount:        all[3],
		PayerCompany:         all[4],
		PolicyNumber:         all[5],
		PayerAddress:         all[6],
	}
	fields = fields.Map(e.normalize)

	e.log.Debug().
		Str("policy_number", fields.PolicyNumber).
		Str("payer_company", fields.PayerCompany).
		Str("payment_amount", fields.PaymentAmount).
		Msg("Extracted policy fields")

	return fields, nil
}

func (e *Extractor) normalize(s string) string {
	for _, r := range e.tpl.Replacements {
		s = strings.ReplaceAll(s, r.Old, r.New)
	}
	return s
}
