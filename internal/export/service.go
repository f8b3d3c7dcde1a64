package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"letterflow/internal/lifecycle"
)

type Options struct {
	Institution    string
	PresidentTitle string
	ChromePath     string
	Timeout        time.Duration
	Logger         *zap.Logger
}

// Service renders official letters to PDF.
type Service struct {
	opts  Options
	print func(ctx context.Context, chromePath, html string) ([]byte, error)
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Service{opts: opts, print: printPDF}
}

// Filename is the stable artifact name for a letter and signature option.
// Regenerating with the same option overwrites the same object.
func Filename(letterID string, signature lifecycle.SignatureOption) string {
	return fmt.Sprintf("letter-%s-%s.pdf", sanitizeFilename(letterID), signature)
}

// Render produces the official PDF for doc.
func (s *Service) Render(ctx context.Context, doc Document) (*Result, error) {
	if !doc.Signature.Valid() {
		return nil, fmt.Errorf("render letter %s: unknown signature option %q", doc.LetterID, doc.Signature)
	}
	html, err := RenderLetterHTML(newTemplateData(doc, s.opts.Institution, s.opts.PresidentTitle))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	started := time.Now()
	data, err := s.print(ctx, s.opts.ChromePath, html)
	if err != nil {
		return nil, err
	}
	info, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	s.opts.Logger.Info("letter rendered",
		zap.String("letter_id", doc.LetterID),
		zap.String("signature", doc.Signature.String()),
		zap.Int("pages", info.Pages),
		zap.Int("bytes", len(data)),
		zap.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return &Result{
		Data:     data,
		Filename: Filename(doc.LetterID, doc.Signature),
		MimeType: "application/pdf",
		Pages:    info.Pages,
	}, nil
}
