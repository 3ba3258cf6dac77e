package intake

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// extractCSV implements §4.6 step 3 "CSV: parse first row; normalize
// headers" — headers become keys, the first data row becomes values.
func extractCSV(data []byte) (map[string]string, string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err != nil {
		return nil, "", fmt.Errorf("intake: csv header read failed: %w", err)
	}
	row, err := r.Read()
	if err != nil {
		return nil, "", fmt.Errorf("intake: csv has no data row: %w", err)
	}

	fields := make(map[string]string, len(header))
	for i, h := range header {
		if i >= len(row) {
			break
		}
		fields[normalizeFieldName(h)] = strings.TrimSpace(row[i])
	}
	return fields, string(data), nil
}

// extractJSON implements §4.6 step 3 "JSON: take first element if array,
// else object; normalize keys".
func extractJSON(data []byte) (map[string]string, string, error) {
	var arr []map[string]any
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return flattenJSONObject(arr[0]), string(data), nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, "", fmt.Errorf("intake: json parse failed: %w", err)
	}
	return flattenJSONObject(obj), string(data), nil
}

func flattenJSONObject(obj map[string]any) map[string]string {
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		fields[normalizeFieldName(k)] = fmt.Sprint(v)
	}
	return fields
}

// mismoTags is the fixed list of canonical MISMO XML tags §4.6 names.
var mismoTags = []string{
	"BaseLoanAmount", "NoteRatePercent", "IndividualFullName", "AddressLineText",
	"MaturityDate", "NoteDate", "MonthlyPaymentAmount",
}

type mismoNode struct {
	XMLName xml.Name
	Content string `xml:",chardata"`
	Nodes   []mismoNode `xml:",any"`
}

// extractMISMO implements §4.6 step 3 "MISMO: parse XML; extract a fixed
// list of canonical tags".
func extractMISMO(data []byte) (map[string]string, string, error) {
	var root mismoNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, "", fmt.Errorf("intake: mismo xml parse failed: %w", err)
	}

	wanted := make(map[string]bool, len(mismoTags))
	for _, t := range mismoTags {
		wanted[t] = true
	}

	fields := make(map[string]string)
	var walk func(n mismoNode)
	walk = func(n mismoNode) {
		if wanted[n.XMLName.Local] {
			if v := strings.TrimSpace(n.Content); v != "" {
				fields[normalizeFieldName(n.XMLName.Local)] = v
			}
		}
		for _, child := range n.Nodes {
			walk(child)
		}
	}
	walk(root)
	return fields, string(data), nil
}
