package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"sanigraph/internal/tech"
)

var csvHeader = []string{"system_id", "category", "substance", "pathway", "statistic", "value"}

// WriteSummaryCSV renders the attached mass-flow summaries of the given
// systems as a long-format table: one row per (system, category,
// substance[, pathway], statistic). Category and statistic names are
// the stable names of the result contract.
//
// Every system must carry a result; callers filter before exporting.
// Row order is deterministic: systems in the given order, categories in
// fixed order, substances and pathways sorted, statistics ordered mean,
// sd, then quantiles ascending.
func WriteSummaryCSV(w io.Writer, systems []*tech.System) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, sys := range systems {
		if sys == nil || sys.Result == nil {
			return fmt.Errorf("write csv: system %s has no mass-flow result", systemLabel(sys))
		}
		if err := writeResultRows(cw, sys.ID, sys.Result); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeResultRows(cw *csv.Writer, systemID string, res *tech.MassflowResult) error {
	write := func(category, substance, pathway string, st tech.Stats) error {
		for _, stat := range statNames(st) {
			record := []string{
				systemID,
				category,
				substance,
				pathway,
				stat,
				strconv.FormatFloat(st[stat], 'g', -1, 64),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		return nil
	}

	for _, sub := range sortedKeys(res.Entered) {
		if err := write(tech.CategoryEntered, sub, "", res.Entered[sub]); err != nil {
			return err
		}
	}
	for _, sub := range sortedKeys(res.Recovered) {
		if err := write(tech.CategoryRecovered, sub, "", res.Recovered[sub]); err != nil {
			return err
		}
	}
	for _, sub := range sortedKeys(res.RecoveryRatio) {
		if err := write(tech.CategoryRecoveryRatio, sub, "", res.RecoveryRatio[sub]); err != nil {
			return err
		}
	}
	for _, sub := range sortedLostKeys(res.Lost) {
		for _, pathway := range sortedKeys(res.Lost[sub]) {
			if err := write(tech.CategoryLost, sub, pathway, res.Lost[sub][pathway]); err != nil {
				return err
			}
		}
	}
	for _, sub := range sortedKeys(res.LostTotal) {
		if err := write(tech.CategoryLostTotal, sub, "", res.LostTotal[sub]); err != nil {
			return err
		}
	}
	return nil
}

// statNames orders a Stats cell's keys deterministically: mean, sd,
// quantiles by ascending q, anything else alphabetically last.
func statNames(st tech.Stats) []string {
	names := make([]string, 0, len(st))
	for name := range st {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		gi, qi := statOrder(names[i])
		gj, qj := statOrder(names[j])
		if gi != gj {
			return gi < gj
		}
		if qi != qj {
			return qi < qj
		}
		return names[i] < names[j]
	})
	return names
}

func statOrder(name string) (group int, q float64) {
	switch name {
	case tech.StatMean:
		return 0, 0
	case tech.StatSD:
		return 1, 0
	}
	if rest, ok := strings.CutPrefix(name, "q_"); ok {
		if v, err := strconv.ParseFloat(rest, 64); err == nil {
			return 2, v
		}
	}
	return 3, 0
}

func sortedKeys(m map[string]tech.Stats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedLostKeys(m map[string]map[string]tech.Stats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func systemLabel(sys *tech.System) string {
	if sys == nil {
		return "<nil>"
	}
	if sys.ID == "" {
		return "<unidentified>"
	}
	return sys.ID
}
