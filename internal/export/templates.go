package export

import (
	"bytes"
	"html/template"
	"time"

	"letterflow/internal/display"
	"letterflow/internal/lifecycle"
)

// SafeHTML marks trusted rich text so the template does not escape it.
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

var letterTemplate = template.Must(template.New("letter").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"safeHTML": SafeHTML,
}).Parse(officialLetterTemplate))

// TemplateData holds data for the official letter template.
type TemplateData struct {
	Institution     string
	PresidentTitle  string
	Reference       string
	Title           string
	DecisionType    string
	Sector          string
	DescriptionHTML string
	Rationale       string
	AuthorName      string
	Date            time.Time
	Scanned         bool
	SignatureLabel  string
}

func newTemplateData(doc Document, institution, presidentTitle string) TemplateData {
	date := doc.ApprovedAt
	if date.IsZero() {
		date = time.Now()
	}
	return TemplateData{
		Institution:     institution,
		PresidentTitle:  presidentTitle,
		Reference:       doc.LetterID,
		Title:           doc.Title,
		DecisionType:    doc.DecisionType,
		Sector:          doc.Sector,
		DescriptionHTML: doc.DescriptionHTML,
		Rationale:       doc.Rationale,
		AuthorName:      doc.AuthorName,
		Date:            date,
		Scanned:         doc.Signature == lifecycle.SignatureScanned,
		SignatureLabel:  display.SignatureLabel(doc.Signature),
	}
}

// RenderLetterHTML renders the official letter template.
func RenderLetterHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := letterTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const officialLetterTemplate = `<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    @page { size: A4; margin: 2cm; }
    body { font-family: "Amiri", "Noto Naskh Arabic", serif; line-height: 1.8; color: #111; }
    header { text-align: center; border-bottom: 2px solid #1c3d5a; padding-bottom: 0.5rem; margin-bottom: 1.5rem; }
    header h1 { margin: 0; font-size: 1.4em; }
    .meta { display: flex; justify-content: space-between; font-size: 0.9em; color: #444; }
    h2 { font-size: 1.2em; text-align: center; margin: 1.5rem 0; }
    .section-title { font-weight: bold; margin-top: 1rem; }
    .signature { margin-top: 3rem; text-align: left; }
    .signature .line { margin-top: 2.5rem; border-top: 1px dotted #333; width: 12rem; display: inline-block; }
    .signature .stamp { border: 2px solid #1c3d5a; color: #1c3d5a; padding: 0.4rem 0.8rem; display: inline-block; }
  </style>
</head>
<body>
  <header>
    <h1>{{.Institution}}</h1>
    {{if .Sector}}<div>{{.Sector}}</div>{{end}}
  </header>
  <div class="meta">
    <span>الرقم: {{.Reference}}</span>
    <span>التاريخ: {{formatDate .Date "2006/01/02"}}</span>
  </div>
  <h2>{{.Title}}</h2>
  {{if .DecisionType}}<div class="section-title">نوع القرار: {{.DecisionType}}</div>{{end}}
  <div class="content">{{.DescriptionHTML | safeHTML}}</div>
  {{if .Rationale}}
  <div class="section-title">المسوغات</div>
  <p>{{.Rationale}}</p>
  {{end}}
  {{if .AuthorName}}<p>مقدم الطلب: {{.AuthorName}}</p>{{end}}
  <div class="signature">
    <div>{{.PresidentTitle}}</div>
    {{if .Scanned}}
    <div class="stamp">{{.SignatureLabel}}</div>
    {{else}}
    <div class="line"></div>
    {{end}}
  </div>
</body>
</html>`
