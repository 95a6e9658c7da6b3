package driven

// FieldNormaliser canonicalizes the textual value of one or more named
// fields (dates to ISO, identifiers to their standard punctuation, and so
// on). Normalisation never rejects a value; unparseable input passes
// through with whitespace cleanup only.
type FieldNormaliser interface {
	// Normalise returns the canonical form of value.
	Normalise(value string) string

	// FieldNames returns the field names this normaliser handles.
	// "*" matches any field.
	FieldNames() []string

	// Priority determines selection when multiple normalisers match.
	// Higher priority wins.
	Priority() int
}

// NormaliserRegistry selects a FieldNormaliser by field name.
type NormaliserRegistry interface {
	Register(n FieldNormaliser)
	Get(fieldName string) FieldNormaliser
}
