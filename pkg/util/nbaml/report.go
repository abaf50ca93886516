package nbaml

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var oddsReportTemplate = template.Must(template.New("odds").Funcs(template.FuncMap{
	"pct":    func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
	"signed": func(f float64) string { return fmt.Sprintf("%+.2f", f) },
	"opt": func(f *float64) string {
		if f == nil {
			return "n/a"
		}
		return fmt.Sprintf("%+.2f", *f)
	},
}).Parse(`<h1>Champion odds {{.Season}}</h1>
{{if .ModelID}}<p>Model <code>{{.ModelID}}</code>{{if .Metrics}}, held-out {{.Metrics}}{{end}}</p>{{end}}
<ol>
{{range .Odds}}<li><strong>{{.TeamAbbreviation}}</strong> {{pct .ChampionProb}} (point diff {{signed .MeanPointDiffRoll10}}, strength {{opt .StrengthScore}})</li>
{{end}}</ol>
`))

// RenderOddsMarkdown renders ranked predictions as a markdown report, at most topN
// rows when topN is positive
func RenderOddsMarkdown(season string, odds []ChampionOdds, artifact *ModelArtifact, topN int) (string, error) {
	if topN > 0 && topN < len(odds) {
		odds = odds[:topN]
	}
	data := struct {
		Season  string
		ModelID string
		Metrics string
		Odds    []ChampionOdds
	}{Season: season, Odds: odds}
	if artifact != nil {
		data.ModelID = artifact.ID
		data.Metrics = artifact.Metrics.String()
	}

	var html bytes.Buffer
	if err := oddsReportTemplate.Execute(&html, data); err != nil {
		return "", fmt.Errorf("failed to render odds report: %w", err)
	}
	markdown, err := htmltomarkdown.ConvertString(html.String())
	if err != nil {
		return "", fmt.Errorf("failed to convert odds report to markdown: %w", err)
	}
	return markdown, nil
}

// WriteOddsReport writes the markdown report next to the odds table
func WriteOddsReport(path, markdown string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
