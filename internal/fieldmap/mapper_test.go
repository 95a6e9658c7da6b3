package fieldmap

import (
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/normalisers"
)

func span(text string, page int, x, y float64, conf float64) domain.TextSpan {
	return domain.TextSpan{
		Text:       text,
		Confidence: conf,
		Page:       page,
		BBox:       domain.BoundingBox{X: x, Y: y, W: float64(len(text)) * 8, H: 14},
	}
}

func newTestMapper(minConf float64) *Mapper {
	return New(normalisers.DefaultRegistry(), minConf)
}

func findField(records []domain.FieldRecord, name string) *domain.FieldRecord {
	for i := range records {
		if records[i].FieldName == name {
			return &records[i]
		}
	}
	return nil
}

func TestMapPatientNameAfterLabel(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Paciente:", 1, 10, 100, 0.96),
		span("JOHN", 1, 90, 100, 0.91),
		span("DOE", 1, 135, 100, 0.88),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	rec := findField(records, "patient_name")
	if rec == nil {
		t.Fatal("patient_name not found")
	}
	if *rec.FieldValue != "John Doe" {
		t.Errorf("value = %q, want %q", *rec.FieldValue, "John Doe")
	}
	// Confidence is the weakest contributing span.
	if *rec.Confidence != 0.88 {
		t.Errorf("confidence = %v, want 0.88", *rec.Confidence)
	}
	if *rec.Page != 1 {
		t.Errorf("page = %d", *rec.Page)
	}
	// BBox covers the value spans.
	if rec.BBox == nil || rec.BBox.X > 90 || rec.BBox.X+rec.BBox.W < 135 {
		t.Errorf("bbox does not cover the value: %+v", rec.BBox)
	}
}

func TestMapNationalIDByPattern(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Documento", 1, 10, 50, 0.9),
		span("123.456.789-01", 1, 100, 50, 0.93),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	rec := findField(records, "national_id")
	if rec == nil {
		t.Fatal("national_id not found")
	}
	if *rec.FieldValue != "123.456.789-01" {
		t.Errorf("value = %q", *rec.FieldValue)
	}
}

func TestMapPhysicianRegistration(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Dr. House", 1, 10, 50, 0.95),
		span("CRM/SP", 1, 10, 80, 0.92),
		span("123456", 1, 70, 80, 0.9),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	rec := findField(records, "physician_registration")
	if rec == nil {
		t.Fatal("physician_registration not found")
	}
	if *rec.FieldValue != "CRM 123456 SP" {
		t.Errorf("value = %q, want normalized CRM form", *rec.FieldValue)
	}
}

func TestMapReportDateNormalized(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Data:", 1, 10, 50, 0.97),
		span("12/03/2024", 1, 60, 50, 0.94),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	rec := findField(records, "report_date")
	if rec == nil {
		t.Fatal("report_date not found")
	}
	if *rec.FieldValue != "2024-03-12" {
		t.Errorf("value = %q, want ISO date", *rec.FieldValue)
	}
}

func TestMapPhoneRequiresLabel(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Telefone:", 1, 10, 50, 0.95),
		span("(11)", 1, 90, 50, 0.9),
		span("98765-4321", 1, 130, 50, 0.92),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	rec := findField(records, "phone")
	if rec == nil {
		t.Fatal("phone not found")
	}
	if *rec.FieldValue != "(11) 98765-4321" {
		t.Errorf("value = %q", *rec.FieldValue)
	}
}

func TestMapLabelAfterCaseGrowingRunes(t *testing.T) {
	// "Ⱥ" grows from 2 to 3 bytes under simple case mapping, so keyword
	// offsets must be computed against the original text, not a lowered copy.
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span(strings.Repeat("Ⱥ", 10), 1, 10, 50, 0.9),
		span("Tel:", 1, 180, 50, 0.9),
		span("(11)", 1, 220, 50, 0.9),
		span("98765-4321", 1, 260, 50, 0.92),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	rec := findField(records, "phone")
	if rec == nil {
		t.Fatal("phone not found")
	}
	if *rec.FieldValue != "(11) 98765-4321" {
		t.Errorf("value = %q", *rec.FieldValue)
	}
}

func TestMapLabelWithoutValue(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span(strings.Repeat("Ⱥ", 10)+" tel:", 1, 10, 50, 0.9),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if rec := findField(records, "phone"); rec != nil {
		t.Errorf("label with no value matched: %q", *rec.FieldValue)
	}
}

func TestMapFirstHitWinsPerPage(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Paciente:", 1, 10, 50, 0.9),
		span("MARIA", 1, 90, 50, 0.9),
		span("Paciente:", 1, 10, 300, 0.9),
		span("OUTRA", 1, 90, 300, 0.9),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	var names []string
	for _, r := range records {
		if r.FieldName == "patient_name" {
			names = append(names, *r.FieldValue)
		}
	}
	if len(names) != 1 || names[0] != "Maria" {
		t.Errorf("got %v, want only the first occurrence", names)
	}
}

func TestMapKeepsOccurrencesAcrossPages(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Paciente:", 1, 10, 50, 0.9),
		span("MARIA", 1, 90, 50, 0.9),
		span("Paciente:", 2, 10, 50, 0.9),
		span("MARIA", 2, 90, 50, 0.9),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	count := 0
	for _, r := range records {
		if r.FieldName == "patient_name" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("got %d patient_name records, want one per page", count)
	}
}

func TestMapMinConfidenceFilter(t *testing.T) {
	m := newTestMapper(0.8)
	records, err := m.Map([]domain.TextSpan{
		span("Paciente:", 1, 10, 50, 0.95),
		span("MARIA", 1, 90, 50, 0.40), // too uncertain
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if rec := findField(records, "patient_name"); rec != nil {
		t.Errorf("low-confidence match should be dropped, got %q", *rec.FieldValue)
	}
}

func TestMapUnmatchedFieldsAbsent(t *testing.T) {
	m := newTestMapper(0)
	records, err := m.Map([]domain.TextSpan{
		span("Resultado", 1, 10, 50, 0.9),
		span("dentro da normalidade", 1, 100, 50, 0.9),
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %+v", records)
	}
}

func TestMapEmptyVocabulary(t *testing.T) {
	m := NewWithVocabulary(normalisers.DefaultRegistry(), 0, nil)
	_, err := m.Map([]domain.TextSpan{span("x", 1, 0, 0, 1)})
	if !errors.Is(err, domain.ErrMapping) {
		t.Errorf("expected ErrMapping, got %v", err)
	}
}

func TestMapFieldWithoutMatchers(t *testing.T) {
	m := NewWithVocabulary(normalisers.DefaultRegistry(), 0, []FieldSpec{{Name: "broken"}})
	_, err := m.Map([]domain.TextSpan{span("x", 1, 0, 0, 1)})
	if !errors.Is(err, domain.ErrMapping) {
		t.Errorf("expected ErrMapping, got %v", err)
	}
}
