package lexer

import "golang.org/x/text/unicode/norm"

// NormalizeIdent canonicalizes an identifier to NFC so that two spellings
// of the same Unicode grapheme cluster (e.g. a precomposed accented
// letter vs. a base letter plus combining mark) compare equal everywhere
// downstream: the symbol table, module resolver, and mangled names all
// key off this normalized form.
func NormalizeIdent(s string) string {
	return norm.NFC.String(s)
}

// NormalizeString applies the same canonicalization to string literal
// contents, so that `"café"` compares equal regardless of which NFC/NFD
// form the source file was saved in.
func NormalizeString(s string) string {
	return norm.NFC.String(s)
}
