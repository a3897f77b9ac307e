package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BookType is the closed set of catalog entry kinds. The stored values keep
// the accents; NormalizeBookType folds variants like "Fisico" into TypeFisico
// so consumers never branch on raw strings.
type BookType string

const (
	TypeFisico        BookType = "Físico"
	TypeVirtual       BookType = "Virtual"
	TypeFisicoVirtual BookType = "Físico y Virtual"
	TypeTesis         BookType = "Tesis"
	TypeProyecto      BookType = "Proyecto de Investigación"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldType(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

var bookTypesByFold = map[string]BookType{
	foldType(string(TypeFisico)):        TypeFisico,
	foldType(string(TypeVirtual)):       TypeVirtual,
	foldType(string(TypeFisicoVirtual)): TypeFisicoVirtual,
	foldType(string(TypeTesis)):         TypeTesis,
	foldType(string(TypeProyecto)):      TypeProyecto,
}

// NormalizeBookType resolves a raw stored value to its canonical BookType.
// Unknown values fall back to TypeFisico, matching the catalog's historical
// default for untyped rows.
func NormalizeBookType(raw string) BookType {
	if t, ok := bookTypesByFold[foldType(raw)]; ok {
		return t
	}
	return TypeFisico
}

// IsPhysical reports whether the type carries a physical copy count.
func (t BookType) IsPhysical() bool {
	return t == TypeFisico || t == TypeFisicoVirtual
}

// HasFile reports whether the type is backed by a downloadable document.
func (t BookType) HasFile() bool {
	return t == TypeVirtual || t == TypeFisicoVirtual || t == TypeTesis || t == TypeProyecto
}
