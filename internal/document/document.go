// Package document renders and parses the Markdown project documents written
// when a map is published: YAML frontmatter, a Mermaid diagram and a node
// outline.
package document

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	delim      = "---"
	fenceOpen  = "```mermaid"
	fenceClose = "```"
)

// Meta is the frontmatter of a project document.
type Meta struct {
	ID          string    `yaml:"id"`
	MapID       string    `yaml:"map_id"`
	Title       string    `yaml:"title"`
	PublishedAt time.Time `yaml:"published_at"`
	Nodes       int       `yaml:"nodes"`
	Edges       int       `yaml:"edges"`
}

// Item is one line of the node outline.
type Item struct {
	Label string
	Type  string
}

// Project is a published project document.
type Project struct {
	Meta
	Mermaid string
	Outline []Item
}

// Render produces the Markdown document for p.
func Render(p Project) ([]byte, error) {
	fm, err := yaml.Marshal(p.Meta)
	if err != nil {
		return nil, fmt.Errorf("document: marshal frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(delim + "\n")
	b.Write(fm)
	b.WriteString(delim + "\n")
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	b.WriteString(fenceOpen + "\n")
	b.WriteString(strings.TrimRight(p.Mermaid, "\n"))
	b.WriteString("\n" + fenceClose + "\n")
	if len(p.Outline) > 0 {
		b.WriteString("\n## Nodes\n\n")
		for _, it := range p.Outline {
			fmt.Fprintf(&b, "- %s (%s)\n", it.Label, it.Type)
		}
	}
	return b.Bytes(), nil
}

// Parse reads a project document back. A document without frontmatter is an
// error; a missing diagram or outline is not.
func Parse(data []byte) (*Project, error) {
	fm, body, ok := splitFrontmatter(data)
	if !ok {
		return nil, fmt.Errorf("document: missing frontmatter")
	}
	var p Project
	if err := yaml.Unmarshal(fm, &p.Meta); err != nil {
		return nil, fmt.Errorf("document: parse frontmatter: %w", err)
	}
	p.Mermaid = extractMermaid(body)
	p.Outline = extractOutline(body)
	return &p, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body.
func splitFrontmatter(data []byte) ([]byte, string, bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	return yamlBlock, strings.TrimLeft(string(afterDelim), "\n\r"), true
}

func extractMermaid(body string) string {
	start := strings.Index(body, fenceOpen+"\n")
	if start < 0 {
		return ""
	}
	rest := body[start+len(fenceOpen)+1:]
	end := strings.Index(rest, "\n"+fenceClose)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func extractOutline(body string) []Item {
	_, section, found := strings.Cut(body, "\n## Nodes\n")
	if !found {
		return nil
	}
	var out []Item
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		line = line[2:]
		open := strings.LastIndex(line, " (")
		if open < 0 || !strings.HasSuffix(line, ")") {
			out = append(out, Item{Label: line})
			continue
		}
		out = append(out, Item{Label: line[:open], Type: line[open+2 : len(line)-1]})
	}
	return out
}
