package normalisers

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// DateNormaliser converts report dates to ISO form (YYYY-MM-DD).
type DateNormaliser struct{}

// numericDateLayouts are tried in order. Day-first layouts come before
// month-first since the source documents are Brazilian.
var numericDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02/01/06",
}

var portugueseMonths = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "março": time.March,
	"marco": time.March, "abril": time.April, "maio": time.May,
	"junho": time.June, "julho": time.July, "agosto": time.August,
	"setembro": time.September, "outubro": time.October,
	"novembro": time.November, "dezembro": time.December,
}

// longDateRe matches "12 de março de 2024" style dates.
var longDateRe = regexp.MustCompile(`(?i)^(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})$`)

func (n *DateNormaliser) Normalise(value string) string {
	v := cleanWhitespace(value)
	if v == "" {
		return v
	}

	for _, layout := range numericDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}

	if m := longDateRe.FindStringSubmatch(v); m != nil {
		if month, ok := portugueseMonths[strings.ToLower(m[2])]; ok {
			day := m[1]
			if len(day) == 1 {
				day = "0" + day
			}
			return fmt.Sprintf("%s-%02d-%s", m[3], int(month), day)
		}
	}

	return v
}

func (n *DateNormaliser) FieldNames() []string { return []string{"report_date"} }
func (n *DateNormaliser) Priority() int        { return 50 }

var nonDigitRe = regexp.MustCompile(`\D`)

// NationalIDNormaliser formats CPF numbers as XXX.XXX.XXX-XX.
type NationalIDNormaliser struct{}

func (n *NationalIDNormaliser) Normalise(value string) string {
	v := cleanWhitespace(value)
	digits := nonDigitRe.ReplaceAllString(v, "")
	if len(digits) != 11 {
		return v
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
}

func (n *NationalIDNormaliser) FieldNames() []string { return []string{"national_id"} }
func (n *NationalIDNormaliser) Priority() int        { return 50 }

// crmRe captures the registration number and optional state code in any of
// the common writings: "CRM/SP 123456", "CRM-SP: 123456", "CRM 123456 SP".
var crmRe = regexp.MustCompile(`(?i)CRM[\s/.:-]*([A-Z]{2})?[\s/.:-]*(\d{4,7})[\s/.:-]*([A-Z]{2})?`)

// PhysicianRegistrationNormaliser formats medical council registrations as
// "CRM <number> <state>".
type PhysicianRegistrationNormaliser struct{}

func (n *PhysicianRegistrationNormaliser) Normalise(value string) string {
	v := cleanWhitespace(value)
	m := crmRe.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	state := m[1]
	if state == "" {
		state = m[3]
	}
	if state == "" {
		return "CRM " + m[2]
	}
	return fmt.Sprintf("CRM %s %s", m[2], strings.ToUpper(state))
}

func (n *PhysicianRegistrationNormaliser) FieldNames() []string {
	return []string{"physician_registration"}
}
func (n *PhysicianRegistrationNormaliser) Priority() int { return 50 }

// PhoneNormaliser formats Brazilian phone numbers as (DD) NNNNN-NNNN.
type PhoneNormaliser struct{}

func (n *PhoneNormaliser) Normalise(value string) string {
	v := cleanWhitespace(value)
	digits := nonDigitRe.ReplaceAllString(v, "")

	// Strip the country code when present.
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}

	switch len(digits) {
	case 11: // mobile with area code
		return fmt.Sprintf("(%s) %s-%s", digits[0:2], digits[2:7], digits[7:11])
	case 10: // landline with area code
		return fmt.Sprintf("(%s) %s-%s", digits[0:2], digits[2:6], digits[6:10])
	default:
		return v
	}
}

func (n *PhoneNormaliser) FieldNames() []string { return []string{"phone"} }
func (n *PhoneNormaliser) Priority() int        { return 50 }

// lowercaseParticles stay lowercase inside title-cased names.
var lowercaseParticles = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true, "e": true,
}

// PersonNameNormaliser title-cases patient names, keeping Portuguese name
// particles lowercase.
type PersonNameNormaliser struct{}

func (n *PersonNameNormaliser) Normalise(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, w := range words {
		if i > 0 && lowercaseParticles[w] {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func (n *PersonNameNormaliser) FieldNames() []string { return []string{"patient_name"} }
func (n *PersonNameNormaliser) Priority() int        { return 50 }
