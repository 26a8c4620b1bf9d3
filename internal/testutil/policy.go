package testutil

import "docauto/pkg/models"

// PolicyText is OCR output of a well-scanned first page.
const PolicyText = "\nUbezpieczający\nACME TRADE\nSPÓŁKA Z OGRANICZONĄ\nODPOWIEDZIALNOŚCIĄ\n" +
	"numer polisy: 123456789\n" +
	"\n\nadres: ALEJA KRAKOWSKA 10\n02-284 WARSZAWA\ne-mail: biuro@acme.pl\n" +
	"\n\nPłatności\n\n" +
	"odbiorca: Towarzystwo Ubezpieczeń SA\n" +
	"ul. Prosta 1\n00-001 Warszawa\n" +
	"nr rachunku: 12 3456 7890 1234 5678 9012 3456\n" +
	"tytuł: składka za polisę\n" +
	"kwota: 1500 zł\n" +
	"termin płatności: 2024-01-31\n"

// PolicyTextFields are the fields extracted from PolicyText.
var PolicyTextFields = models.PolicyFields{
	RecipientName:        "Towarzystwo Ubezpieczeń SA",
	RecipientAddress:     "ul. Prosta 100-001 Warszawa",
	RecipientBankAccount: "12345678901234567890123456",
	PaymentAmount:        "1500",
	PayerCompany:         "ACME TRADE sp. z o.o.",
	PolicyNumber:         "123456789",
	PayerAddress:         "al KRAKOWSKA 1002-284 WARSZAWA",
}
