package chat

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/artvision/curator/backend/internal/model/chat"
)

type reportLabels struct {
	Title       string
	Style       string
	Artist      string
	Period      string
	Confidence  string
	Description string
	OCRText     string
	Analyzed    string
}

var labelsByLocale = map[string]reportLabels{
	"pt-BR": {
		Title:       "Relatório de análise",
		Style:       "Estilo",
		Artist:      "Artista",
		Period:      "Período",
		Confidence:  "Confiança",
		Description: "Descrição",
		OCRText:     "Texto detectado",
		Analyzed:    "Analisado em",
	},
	"en-US": {
		Title:       "Analysis report",
		Style:       "Style",
		Artist:      "Artist",
		Period:      "Period",
		Confidence:  "Confidence",
		Description: "Description",
		OCRText:     "Detected text",
		Analyzed:    "Analyzed at",
	},
}

var reportPage = template.Must(template.New("report").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<img src="{{.ImageURL}}" alt="{{.Title}}">
{{.Content}}
</body>
</html>
`))

// RenderReport renders an analysis as a standalone HTML page.
func RenderReport(locale string, result chat.AnalysisResult) ([]byte, error) {
	labels, ok := labelsByLocale[locale]
	if !ok {
		locale = "en-US"
		labels = labelsByLocale[locale]
	}

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert([]byte(reportMarkdown(labels, result)), &htmlBuf); err != nil {
		return nil, fmt.Errorf("converting report markdown: %w", err)
	}

	data := struct {
		Lang     string
		Title    string
		ImageURL string
		Content  template.HTML
	}{
		Lang:     locale,
		Title:    labels.Title + ": " + result.Artist,
		ImageURL: result.ImageURL,
		Content:  template.HTML(htmlBuf.String()),
	}

	var page bytes.Buffer
	if err := reportPage.Execute(&page, data); err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return page.Bytes(), nil
}

func reportMarkdown(labels reportLabels, result chat.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", labels.Title)
	fmt.Fprintf(&b, "- **%s:** %s (%s %.0f%%)\n", labels.Style, result.Style, labels.Confidence, result.Confidence.Style*100)
	fmt.Fprintf(&b, "- **%s:** %s (%s %.0f%%)\n", labels.Artist, result.Artist, labels.Confidence, result.Confidence.Artist*100)
	fmt.Fprintf(&b, "- **%s:** %s\n", labels.Period, result.Period)
	fmt.Fprintf(&b, "- **%s:** %s\n\n", labels.Analyzed, result.CreatedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", labels.Description, result.AIDescription)
	fmt.Fprintf(&b, "## %s\n\n> %s\n", labels.OCRText, strings.ReplaceAll(result.OCRText, "\n", "\n> "))
	return b.String()
}
