package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// xmlSection is one rendered section's leaves, in stable field order.
type xmlSection struct {
	Name   string
	Leaves []xmlLeaf
}

// xmlLeaf is one rendered <tag>value</tag> element plus the lineage
// comment that must precede it (§4.9 step 5 "emit a comment LINEAGE
// canonical:<key> | doc:<docId> | page:<page> | hash:<textHash>
// immediately before the leaf element").
type xmlLeaf struct {
	Tag     string
	Value   string
	Comment string
}

var xmlDocTemplate = template.Must(template.New("export-xml").Funcs(sprig.TxtFuncMap()).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<{{ .Root }}>
{{- range .Sections }}
  <{{ .Name }}>
{{- range .Leaves }}
    <!-- {{ .Comment }} -->
    <{{ .Tag }}>{{ .Value | trim }}</{{ .Tag }}>
{{- end }}
  </{{ .Name }}>
{{- end }}
</{{ .Root }}>
`))

// BuildXML renders the §4.9 XML document: one root element per template,
// sections in stable (sorted) order, each leaf preceded by its lineage
// comment. Grounded on AKJUS-bsc-erigon's text/template+sprig rendering
// style — the template itself stays declarative (one range over sections,
// one range over leaves) while sprig's `trim` normalizes coerced values
// before they're escaped into the document.
func BuildXML(cfg *MapperConfig, datapoints map[string]domain.Datapoint) ([]byte, error) {
	sectionNames := make([]string, 0, len(cfg.Sections))
	for name := range cfg.Sections {
		sectionNames = append(sectionNames, name)
	}
	sort.Strings(sectionNames)

	sections := make([]xmlSection, 0, len(sectionNames))
	for _, sectionName := range sectionNames {
		fields := cfg.Sections[sectionName]
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		leaves := make([]xmlLeaf, 0, len(keys))
		for _, canonicalKey := range keys {
			dp, ok := datapoints[canonicalKey]
			if !ok {
				continue
			}
			leaves = append(leaves, xmlLeaf{
				Tag:     xpathLeafName(fields[canonicalKey]),
				Value:   escapeText(CoerceValue(canonicalKey, dp.Value)),
				Comment: escapeComment(lineageComment(canonicalKey, dp)),
			})
		}
		sections = append(sections, xmlSection{Name: sectionName, Leaves: leaves})
	}

	var buf bytes.Buffer
	if err := xmlDocTemplate.Execute(&buf, struct {
		Root     string
		Sections []xmlSection
	}{Root: cfg.Root, Sections: sections}); err != nil {
		return nil, fmt.Errorf("export: xml render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func lineageComment(key string, dp domain.Datapoint) string {
	docID := ""
	if dp.EvidenceDocID != nil {
		docID = dp.EvidenceDocID.String()
	}
	page := ""
	if dp.EvidencePage != nil {
		page = fmt.Sprintf("%d", *dp.EvidencePage)
	}
	return fmt.Sprintf("LINEAGE canonical:%s | doc:%s | page:%s | hash:%s", key, docID, page, dp.EvidenceTextHash)
}

// xpathLeafName returns the final path segment of an XPATH-like mapping
// string, e.g. "/LOAN/AMOUNT" -> "AMOUNT".
func xpathLeafName(xpath string) string {
	parts := strings.Split(strings.TrimPrefix(xpath, "/"), "/")
	return parts[len(parts)-1]
}

func escapeText(s string) string {
	var buf strings.Builder
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func escapeComment(s string) string {
	// XML comments may not contain "--"; collapse any occurrence.
	return strings.ReplaceAll(s, "--", "- -")
}
