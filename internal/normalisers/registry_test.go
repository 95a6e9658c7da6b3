package normalisers

import "testing"

func TestRegistryFallsBackToWhitespace(t *testing.T) {
	r := DefaultRegistry()
	got := r.Normalise("some_unknown_field", "  hello \t world  ")
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestRegistryPrefersSpecificNormaliser(t *testing.T) {
	r := DefaultRegistry()
	n := r.Get("report_date")
	if n == nil {
		t.Fatal("no normaliser for report_date")
	}
	if _, ok := n.(*DateNormaliser); !ok {
		t.Errorf("got %T, want *DateNormaliser", n)
	}
}

func TestRegistryGetUnknownField(t *testing.T) {
	r := NewRegistry()
	if n := r.Get("anything"); n != nil {
		t.Errorf("empty registry returned %T", n)
	}
}

func TestDateNormaliser(t *testing.T) {
	n := &DateNormaliser{}
	cases := map[string]string{
		"12/03/2024":            "2024-03-12",
		"12-03-2024":            "2024-03-12",
		"12.03.2024":            "2024-03-12",
		"2024-03-12":            "2024-03-12",
		"12 de março de 2024":   "2024-03-12",
		"5 de janeiro de 2023":  "2023-01-05",
		"not a date":            "not a date",
		"  12/03/2024  ":        "2024-03-12",
		"31 de piztember de 99": "31 de piztember de 99",
	}
	for in, want := range cases {
		if got := n.Normalise(in); got != want {
			t.Errorf("Normalise(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNationalIDNormaliser(t *testing.T) {
	n := &NationalIDNormaliser{}
	cases := map[string]string{
		"12345678901":      "123.456.789-01",
		"123.456.789-01":   "123.456.789-01",
		"123 456 789 01":   "123.456.789-01",
		"123.456.789":      "123.456.789", // too short, passes through
		"CPF: 12345678901": "123.456.789-01",
	}
	for in, want := range cases {
		if got := n.Normalise(in); got != want {
			t.Errorf("Normalise(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhysicianRegistrationNormaliser(t *testing.T) {
	n := &PhysicianRegistrationNormaliser{}
	cases := map[string]string{
		"CRM/SP 123456":   "CRM 123456 SP",
		"CRM-SP: 123456":  "CRM 123456 SP",
		"crm 123456 sp":   "CRM 123456 SP",
		"CRM 123456":      "CRM 123456",
		"no registration": "no registration",
	}
	for in, want := range cases {
		if got := n.Normalise(in); got != want {
			t.Errorf("Normalise(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhoneNormaliser(t *testing.T) {
	n := &PhoneNormaliser{}
	cases := map[string]string{
		"11987654321":        "(11) 98765-4321",
		"(11) 98765-4321":    "(11) 98765-4321",
		"+55 11 98765-4321":  "(11) 98765-4321",
		"1134567890":         "(11) 3456-7890",
		"987654321":          "987654321", // no area code, passes through
		"call the front desk": "call the front desk",
	}
	for in, want := range cases {
		if got := n.Normalise(in); got != want {
			t.Errorf("Normalise(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPersonNameNormaliser(t *testing.T) {
	n := &PersonNameNormaliser{}
	cases := map[string]string{
		"JOHN DOE":             "John Doe",
		"maria da silva":       "Maria da Silva",
		"JOSÉ DOS SANTOS":      "José dos Santos",
		"ana e souza":          "Ana e Souza",
		"  pedro   alves  ":    "Pedro Alves",
		"De andrade":           "De Andrade", // particle leads, stays capitalized
	}
	for in, want := range cases {
		if got := n.Normalise(in); got != want {
			t.Errorf("Normalise(%q) = %q, want %q", in, got, want)
		}
	}
}
