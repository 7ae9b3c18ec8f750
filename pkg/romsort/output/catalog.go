package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
	"gopkg.in/yaml.v3"
)

// CatalogInfo summarizes a loaded catalog.
type CatalogInfo struct {
	Path        string   `json:"path" yaml:"path"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
	Games       int      `json:"games" yaml:"games"`
	Entries     int      `json:"entries" yaml:"entries"`
	Skipped     int      `json:"skipped" yaml:"skipped"`
	Regions     []string `json:"regions" yaml:"regions"`
}

// NewCatalogInfo describes idx, loaded from path.
func NewCatalogInfo(path string, idx *catalog.Index) CatalogInfo {
	h := idx.Header()
	return CatalogInfo{
		Path:        path,
		Name:        h.Name,
		Description: h.Description,
		Version:     h.Version,
		Author:      h.Author,
		Games:       idx.Games(),
		Entries:     idx.Len(),
		Skipped:     idx.Skipped(),
		Regions:     idx.Regions(),
	}
}

// FormatCatalog writes info in the named format.
func FormatCatalog(w *bytes.Buffer, format string, info CatalogInfo) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(info); err != nil {
			return err
		}
		return encoder.Close()
	case "plain":
		return formatCatalogPlain(w, info)
	case "pretty":
		formatCatalogPretty(w, info)
		return nil
	default:
		return fmt.Errorf("unknown formatter: %s", format)
	}
}

func formatCatalogPlain(w *bytes.Buffer, info CatalogInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	rows := [][2]string{
		{"path", info.Path},
		{"name", info.Name},
		{"version", info.Version},
		{"games", fmt.Sprint(info.Games)},
		{"entries", fmt.Sprint(info.Entries)},
		{"skipped", fmt.Sprint(info.Skipped)},
		{"regions", strings.Join(info.Regions, ",")},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatCatalogPretty(w *bytes.Buffer, info CatalogInfo) {
	name := info.Name
	if name == "" {
		name = "(unnamed catalog)"
	}

	lines := []string{TitleStyle.Render(name)}
	if info.Description != "" && info.Description != info.Name {
		lines = append(lines, MutedStyle.Render(info.Description))
	}
	field := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render(label), ValueStyle.Render(value)))
		}
	}
	field("File:", info.Path)
	field("Version:", info.Version)
	field("Author:", info.Author)
	field("Games:", humanize.Comma(int64(info.Games)))
	field("Entries:", humanize.Comma(int64(info.Entries)))
	if info.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Skipped:"),
			WarningStyle.Render(humanize.Comma(int64(info.Skipped))+" roms without md5 or name")))
	}
	field("Regions:", strings.Join(info.Regions, ", "))

	w.WriteString(HeaderBox.Render(strings.Join(lines, "\n")))
	w.WriteString("\n")
}
