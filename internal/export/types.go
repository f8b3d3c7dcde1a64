// Package export renders the official letter document and prints it to PDF.
package export

import (
	"errors"
	"time"

	"letterflow/internal/lifecycle"
)

// Document is the approved letter content placed on the official template.
type Document struct {
	LetterID        string
	Title           string
	DecisionType    string
	Sector          string
	DescriptionHTML string
	Rationale       string
	AuthorName      string
	ApprovedAt      time.Time
	Signature       lifecycle.SignatureOption
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	Pages    int
}

var (
	// ErrPDFDependencyMissing indicates no headless Chrome binary is available.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrInvalidPDF indicates the printer produced bytes that do not parse as a PDF.
	ErrInvalidPDF = errors.New("export produced invalid pdf")
)
