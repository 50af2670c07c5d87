package engine

import "fmt"

// PDFStandard is a PDF compliance profile the exporter can enforce.
type PDFStandard string

const (
	PDF17  PDFStandard = "pdf_1_7"
	PDFA2b PDFStandard = "pdf_a_2b"
	PDFA3b PDFStandard = "pdf_a_3b"
)

// Valid reports whether s is a known standard.
func (s PDFStandard) Valid() bool {
	switch s {
	case PDF17, PDFA2b, PDFA3b:
		return true
	}
	return false
}

// ParsePDFStandard converts an identifier string into a PDFStandard.
func ParsePDFStandard(s string) (PDFStandard, error) {
	std := PDFStandard(s)
	if !std.Valid() {
		return "", fmt.Errorf("unknown PDF standard %q", s)
	}
	return std, nil
}

// PDFOptions controls PDF export.
type PDFOptions struct {
	// Pages is a 1-indexed page selection such as "1-3,5,7-9". Empty
	// means all pages.
	Pages string

	// Standards are the compliance profiles to enforce.
	Standards []PDFStandard

	// DocumentID is an opaque stable identifier embedded in the output.
	// Empty means the backend picks one.
	DocumentID string
}
