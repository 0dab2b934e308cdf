package library

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	doc := strings.Join([]string{
		"name,group,inputs,outputs,reliability",
		"household,source,,blackwater,",
		"septic tank,onsite storage,blackwater,sludge;effluent,60",
		"soak pit,disposal,effluent,,",
	}, "\n")

	lib, errs := parseCSV("lib.csv", strings.NewReader(doc))
	require.Empty(t, errs)
	require.Equal(t, 3, lib.Len())

	septic, ok := lib.Technology("septic tank")
	require.True(t, ok)
	require.Len(t, septic.Inputs, 1)
	require.Len(t, septic.Outputs, 2)
	assert.Equal(t, "sludge", septic.Outputs[0].Name)
	assert.Equal(t, 60.0, septic.Transfer.Reliability)
	assert.Empty(t, septic.Transfer.Substances, "CSV form carries structure only")

	household, ok := lib.Technology("household")
	require.True(t, ok)
	assert.True(t, household.IsSource())
	assert.Zero(t, household.Transfer.Reliability)
}

func TestParseCSVRepeatedPorts(t *testing.T) {
	doc := "name,group,inputs,outputs,reliability\n" +
		"chamber,treatment,sludge,compost;compost,\n"

	lib, errs := parseCSV("lib.csv", strings.NewReader(doc))
	require.Empty(t, errs)

	chamber, ok := lib.Technology("chamber")
	require.True(t, ok)
	require.Len(t, chamber.Outputs, 2, "repeated products are distinct units")
}

func TestParseCSVBadHeader(t *testing.T) {
	doc := "name,kind,inputs,outputs,reliability\nx,source,,a,\n"

	_, errs := parseCSV("lib.csv", strings.NewReader(doc))
	require.Len(t, errs, 1)
	assertCode(t, errs[0], ErrCodeParseFailed)
	assert.ErrorContains(t, errs[0], "header")
}

func TestParseCSVCollectsRecordErrors(t *testing.T) {
	doc := strings.Join([]string{
		"name,group,inputs,outputs,reliability",
		",source,,a,",
		"ok,source,,a,",
		"bad,treatment,a,b,minus-one",
	}, "\n")

	_, errs := parseCSV("lib.csv", strings.NewReader(doc))
	require.Len(t, errs, 2)
	assert.ErrorContains(t, errs[0], "record 2")
	assert.ErrorContains(t, errs[1], "record 4")
}

func TestParseCSVDuplicateNames(t *testing.T) {
	doc := strings.Join([]string{
		"name,group,inputs,outputs,reliability",
		"a,source,,x,",
		"a,treatment,x,,",
	}, "\n")

	_, errs := parseCSV("lib.csv", strings.NewReader(doc))
	require.Len(t, errs, 1)
	assertCode(t, errs[0], ErrCodeDuplicateName)
}

func TestLoadCSVNotFound(t *testing.T) {
	_, errs := LoadCSV("testdata/nope.csv")
	require.Len(t, errs, 1)
	assertCode(t, errs[0], ErrCodeNotFound)
}
