package scoring

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"staffappraisal/internal/domain/apperr"
)

//go:embed templates/competencies.yaml
var defaultTemplate []byte

// Template is the competency catalogue the Annual Appraisal is scored against.
// Weights come from here, never from the client.
type Template struct {
	Core    []CompetencyCategory `json:"core" yaml:"core"`
	NonCore []CompetencyCategory `json:"nonCore" yaml:"nonCore"`
}

func DefaultTemplate() (Template, error) {
	return ParseTemplate(defaultTemplate)
}

// LoadTemplate reads a catalogue from path, or the built-in one when path is
// empty.
func LoadTemplate(path string) (Template, error) {
	if path == "" {
		return DefaultTemplate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read competency template: %w", err)
	}
	return ParseTemplate(data)
}

func ParseTemplate(data []byte) (Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return Template{}, fmt.Errorf("parse competency template: %w", err)
	}
	var issues apperr.Collector
	checkTemplateGroup("core", tmpl.Core, &issues)
	checkTemplateGroup("nonCore", tmpl.NonCore, &issues)
	if err := issues.Err(); err != nil {
		return Template{}, fmt.Errorf("competency template: %w", err)
	}
	return tmpl, nil
}

func checkTemplateGroup(field string, categories []CompetencyCategory, issues *apperr.Collector) {
	seen := make(map[string]bool, len(categories))
	for i, category := range categories {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if category.ID == "" {
			issues.Add(prefix+".id", "is required")
		}
		if seen[category.ID] {
			issues.Addf(prefix+".id", "duplicate category %q", category.ID)
		}
		seen[category.ID] = true
		items := make(map[string]bool, len(category.Items))
		for j, item := range category.Items {
			if item.ID == "" || items[item.ID] {
				issues.Addf(fmt.Sprintf("%s.items[%d].id", prefix, j), "missing or duplicate item id %q", item.ID)
			}
			items[item.ID] = true
		}
	}
	ValidateCategories(field, categories, issues)
}

// Apply lays client scores over the catalogue. The result always has the
// catalogue's shape; items the client did not send keep score 0. Unknown
// category or item ids are rejected.
func (t Template) Apply(core, nonCore []CompetencyCategory) ([]CompetencyCategory, []CompetencyCategory, error) {
	var issues apperr.Collector
	outCore := applyGroup("core", t.Core, core, &issues)
	outNonCore := applyGroup("nonCore", t.NonCore, nonCore, &issues)
	if err := issues.Err(); err != nil {
		return nil, nil, err
	}
	return outCore, outNonCore, nil
}

func applyGroup(field string, template, input []CompetencyCategory, issues *apperr.Collector) []CompetencyCategory {
	type scored struct {
		score    int
		comments string
	}
	byCategory := make(map[string]map[string]scored, len(input))
	known := make(map[string]map[string]bool, len(template))
	for _, category := range template {
		ids := make(map[string]bool, len(category.Items))
		for _, item := range category.Items {
			ids[item.ID] = true
		}
		known[category.ID] = ids
	}

	for i, category := range input {
		ids, ok := known[category.ID]
		if !ok {
			issues.Addf(fmt.Sprintf("%s[%d].id", field, i), "unknown category %q", category.ID)
			continue
		}
		entries := make(map[string]scored, len(category.Items))
		for j, item := range category.Items {
			if !ids[item.ID] {
				issues.Addf(fmt.Sprintf("%s[%d].items[%d].id", field, i, j), "unknown item %q", item.ID)
				continue
			}
			if !validScore(item.Score) {
				issues.Addf(fmt.Sprintf("%s[%d].items[%d].score", field, i, j), "must be between %d and %d", MinScore, MaxScore)
			}
			entries[item.ID] = scored{score: item.Score, comments: item.Comments}
		}
		byCategory[category.ID] = entries
	}

	out := make([]CompetencyCategory, len(template))
	for i, category := range template {
		filled := CompetencyCategory{ID: category.ID, Name: category.Name, Items: make([]CompetencyItem, len(category.Items))}
		for j, item := range category.Items {
			if entry, ok := byCategory[category.ID][item.ID]; ok {
				item.Score = entry.score
				item.Comments = entry.comments
			}
			filled.Items[j] = item
		}
		out[i] = filled
	}
	return out
}
