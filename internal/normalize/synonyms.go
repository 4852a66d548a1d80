package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field is a logical column the normalizer knows how to resolve.
type Field string

const (
	FieldIdentity Field = "identity"
	FieldToPar    Field = "to_par"
	FieldGross    Field = "gross"
	FieldProgress Field = "progress"
	FieldPar      Field = "par"
	FieldLabel    Field = "label"
)

// Fields lists every logical field in resolution order.
var Fields = []Field{FieldIdentity, FieldToPar, FieldGross, FieldProgress, FieldPar, FieldLabel}

// Synonyms maps each logical field to its accepted header names, in
// priority order. The first synonym present in a header wins.
type Synonyms map[Field][]string

// DefaultSynonyms returns the header names the overlay sheets have used,
// including the Korean headers.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		FieldIdentity: {"name", "player", "이름", "선수"},
		FieldToPar:    {"spt", "to_par", "topar", "score_to_par", "스코어"},
		FieldGross:    {"gs", "gross", "합계", "total"},
		FieldProgress: {"current_hole", "hole", "홀"},
		FieldPar:      {"current_par", "par", "파"},
		FieldLabel:    {"golf_course", "golf course", "golfcourse", "course", "description", "desc", "골프장"},
	}
}

// Merge returns a copy of s with extra synonyms appended after the
// existing ones for each field.
func (s Synonyms) Merge(extra map[string][]string) Synonyms {
	out := make(Synonyms, len(s))
	for f, names := range s {
		out[f] = append([]string(nil), names...)
	}
	for f, names := range extra {
		out[Field(f)] = append(out[Field(f)], names...)
	}
	return out
}

// columns is the resolved header: logical field -> column index.
type columns map[Field]int

// resolve matches a header row against the synonym table once per table.
// Matching is case-insensitive on trimmed, NFC-normalized text.
func (s Synonyms) resolve(header []string) columns {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := make(columns)
	for _, f := range Fields {
		for _, name := range s[f] {
			if i, ok := index[headerKey(name)]; ok {
				cols[f] = i
				break
			}
		}
	}
	return cols
}

func (c columns) has(f Field) bool {
	_, ok := c[f]
	return ok
}

// cell returns the trimmed value of field f in row, or "" when the column
// is unresolved or the row is short.
func (c columns) cell(row []string, f Field) string {
	i, ok := c[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func headerKey(h string) string {
	// Strip a UTF-8 BOM that survives on the first header cell of some exports.
	h = strings.TrimPrefix(h, "\uFEFF")
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(h)))
}
