package livelist

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// LabelFunc turns the grouping key of a row into the label of its section
// header. It must be pure: equal keys have to produce equal labels.
type LabelFunc func(groupKeyValue string) string

// DefaultHeaderLabel returns the first character of the key value. A
// character is one NFC segment, so "é" written as e plus a combining accent
// and the precomposed "é" produce the same label.
func DefaultHeaderLabel(groupKeyValue string) string {
	var it norm.Iter
	it.InitString(norm.NFC, groupKeyValue)
	if it.Done() {
		return ""
	}
	return string(it.Next())
}

// FoldedHeaderLabel is DefaultHeaderLabel upper-cased, so "apple" and
// "Avocado" share the "A" section.
func FoldedHeaderLabel(groupKeyValue string) string {
	return cases.Upper(language.Und).String(DefaultHeaderLabel(groupKeyValue))
}
