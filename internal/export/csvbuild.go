package export

import (
	"bytes"
	"encoding/csv"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// BuildCSV renders the §4.9 CSV document: one header row plus one value
// row, using the mapper's header/mapping declaration. encoding/csv already
// implements RFC4180-style quoting (comma/quote/newline escaping, doubled
// quotes inside quoted fields) so no hand-rolled escaping is needed here.
func BuildCSV(cfg *MapperConfig, datapoints map[string]domain.Datapoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(cfg.CSV.Header); err != nil {
		return nil, err
	}

	row := make([]string, len(cfg.CSV.Header))
	for i, col := range cfg.CSV.Header {
		canonicalKey, ok := cfg.CSV.Mapping[col]
		if !ok {
			continue
		}
		if dp, ok := datapoints[canonicalKey]; ok {
			row[i] = CoerceValue(canonicalKey, dp.Value)
		}
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
