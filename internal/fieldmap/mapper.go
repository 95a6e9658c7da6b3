// Package fieldmap locates named fields in recognized text. Matching runs
// over per-page lines rebuilt from positioned spans, using label keywords
// and value patterns per field.
package fieldmap

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

// Matcher finds one field value inside a line of text. It returns the byte
// offsets of the value within the line, or ok=false.
type Matcher interface {
	Find(line string) (start, end int, ok bool)
}

// FieldSpec binds a field name to its ordered matcher list. Earlier
// matchers are more specific and win.
type FieldSpec struct {
	Name     string
	Matchers []Matcher
}

// Mapper extracts the configured field vocabulary from span sequences.
type Mapper struct {
	fields        []FieldSpec
	registry      driven.NormaliserRegistry
	minConfidence float64
}

// New creates a Mapper over the default vocabulary.
func New(registry driven.NormaliserRegistry, minConfidence float64) *Mapper {
	return &Mapper{
		fields:        defaultVocabulary(),
		registry:      registry,
		minConfidence: minConfidence,
	}
}

// NewWithVocabulary creates a Mapper with a custom field list.
func NewWithVocabulary(registry driven.NormaliserRegistry, minConfidence float64, fields []FieldSpec) *Mapper {
	return &Mapper{
		fields:        fields,
		registry:      registry,
		minConfidence: minConfidence,
	}
}

// Map scans the spans for every field in the vocabulary. The first match
// per field per page wins; matches on different pages are all kept.
func (m *Mapper) Map(spans []domain.TextSpan) ([]domain.FieldRecord, error) {
	if len(m.fields) == 0 {
		return nil, fmt.Errorf("%w: empty field vocabulary", domain.ErrMapping)
	}
	for _, f := range m.fields {
		if len(f.Matchers) == 0 {
			return nil, fmt.Errorf("%w: field %q has no matchers", domain.ErrMapping, f.Name)
		}
	}

	sorted := make([]domain.TextSpan, len(spans))
	copy(sorted, spans)
	domain.SortSpans(sorted)
	lines := buildLines(sorted)

	var records []domain.FieldRecord
	for _, field := range m.fields {
		matchedPages := make(map[int]bool)
		for _, ln := range lines {
			if matchedPages[ln.page] {
				continue
			}
			rec, ok := m.matchLine(field, ln)
			if !ok {
				continue
			}
			matchedPages[ln.page] = true
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *Mapper) matchLine(field FieldSpec, ln line) (domain.FieldRecord, bool) {
	for _, matcher := range field.Matchers {
		start, end, ok := matcher.Find(ln.text)
		if !ok {
			continue
		}
		contributing := ln.spansIn(start, end)
		if len(contributing) == 0 {
			continue
		}

		conf := contributing[0].Confidence
		box := contributing[0].BBox
		for _, s := range contributing[1:] {
			if s.Confidence < conf {
				conf = s.Confidence
			}
			box = box.Union(s.BBox)
		}
		if conf < m.minConfidence {
			continue
		}

		value := m.normalise(field.Name, ln.text[start:end])
		if value == "" {
			continue
		}
		page := ln.page
		return domain.FieldRecord{
			ID:         uuid.NewString(),
			FieldName:  field.Name,
			FieldValue: &value,
			Confidence: &conf,
			Page:       &page,
			BBox:       &box,
			CreatedAt:  time.Now(),
		}, true
	}
	return domain.FieldRecord{}, false
}

func (m *Mapper) normalise(fieldName, raw string) string {
	if n := m.registry.Get(fieldName); n != nil {
		return n.Normalise(raw)
	}
	return strings.Join(strings.Fields(raw), " ")
}

// line is one horizontal run of spans on a page, joined into text. starts
// records where each span begins inside text.
type line struct {
	page   int
	spans  []domain.TextSpan
	text   string
	starts []int
}

// spansIn returns the spans whose text overlaps [start, end).
func (l line) spansIn(start, end int) []domain.TextSpan {
	var out []domain.TextSpan
	for i, s := range l.spans {
		sStart := l.starts[i]
		sEnd := sStart + len(s.Text)
		if sStart < end && sEnd > start {
			out = append(out, s)
		}
	}
	return out
}

// buildLines groups reading-ordered spans into lines: a span joins the
// current line while its vertical center stays within the line's band.
func buildLines(sorted []domain.TextSpan) []line {
	var lines []line
	var cur *line
	var curY, curH float64

	flush := func() {
		if cur != nil && len(cur.spans) > 0 {
			lines = append(lines, *cur)
		}
		cur = nil
	}

	for _, s := range sorted {
		center := s.BBox.Y + s.BBox.H/2
		sameLine := cur != nil &&
			cur.page == s.Page &&
			center >= curY-curH/2 &&
			center <= curY+curH*1.5

		if !sameLine {
			flush()
			cur = &line{page: s.Page}
			curY = s.BBox.Y
			curH = s.BBox.H
			if curH <= 0 {
				curH = 1
			}
		}

		if len(cur.spans) > 0 {
			cur.text += " "
		}
		cur.starts = append(cur.starts, len(cur.text))
		cur.text += s.Text
		cur.spans = append(cur.spans, s)
	}
	flush()
	return lines
}

// keywordMatcher finds a label keyword and captures the value that follows
// it on the same line. Labels are matched case-insensitively via compiled
// regexps so every offset refers to the original text; lowercasing a copy
// first is not offset-safe because case mapping can change byte lengths.
type keywordMatcher struct {
	labels  []*regexp.Regexp
	valueRe *regexp.Regexp
}

func newKeywordMatcher(valueRe *regexp.Regexp, keywords ...string) keywordMatcher {
	labels := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		labels[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw))
	}
	return keywordMatcher{labels: labels, valueRe: valueRe}
}

var separatorRe = regexp.MustCompile(`^[\s:.\-]*`)

func (k keywordMatcher) Find(text string) (int, int, bool) {
	for _, label := range k.labels {
		loc := label.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := loc[1]
		rest += len(separatorRe.FindString(text[rest:]))
		if rest >= len(text) {
			continue
		}
		vloc := k.valueRe.FindStringIndex(text[rest:])
		if vloc == nil || vloc[0] > 3 {
			continue
		}
		return rest + vloc[0], rest + vloc[1], true
	}
	return 0, 0, false
}

// patternMatcher matches a value pattern anywhere in the line.
type patternMatcher struct {
	re *regexp.Regexp
}

func (p patternMatcher) Find(text string) (int, int, bool) {
	loc := p.re.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

var (
	nameValueRe  = regexp.MustCompile(`[\p{L}][\p{L} .'-]*[\p{L}.]`)
	cpfRe        = regexp.MustCompile(`\d{3}[.\s]?\d{3}[.\s]?\d{3}[\s.-]?\d{2}`)
	crmValueRe   = regexp.MustCompile(`(?i)CRM[\s/.:-]*(?:[A-Z]{2})?[\s/.:-]*\d{4,7}(?:[\s/.-]*[A-Z]{2})?`)
	dateValueRe  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{1,2}\s+de\s+\p{L}+\s+de\s+\d{4}`)
	phoneValueRe = regexp.MustCompile(`(?:\+?55[\s.-]?)?\(?\d{2}\)?[\s.-]?\d{4,5}[\s.-]?\d{4}`)
)

// defaultVocabulary is the field set extracted from scanned medical
// reports, with label keywords in Portuguese and English.
func defaultVocabulary() []FieldSpec {
	return []FieldSpec{
		{
			Name: "patient_name",
			Matchers: []Matcher{
				newKeywordMatcher(nameValueRe, "nome do paciente", "paciente", "patient", "nome"),
			},
		},
		{
			Name: "national_id",
			Matchers: []Matcher{
				newKeywordMatcher(cpfRe, "cpf"),
				patternMatcher{re: cpfRe},
			},
		},
		{
			Name: "physician_registration",
			Matchers: []Matcher{
				patternMatcher{re: crmValueRe},
			},
		},
		{
			Name: "report_date",
			Matchers: []Matcher{
				newKeywordMatcher(dateValueRe, "data do exame", "data de emissão", "data", "date"),
				patternMatcher{re: dateValueRe},
			},
		},
		{
			Name: "phone",
			Matchers: []Matcher{
				newKeywordMatcher(phoneValueRe, "telefone", "celular", "fone", "contato", "tel"),
			},
		},
	}
}
