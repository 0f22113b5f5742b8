package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSamples(t *testing.T) {
	data, err := parseSamples("1, 2,3\t4\n5")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, data)

	_, err = parseSamples("1 two 3")
	assert.Error(t, err)
}

func TestRunSingleValue(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-value", "4", "1", "2", "3", "4", "5"}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "0.7500")
}

func TestRunSeriesFromStdin(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-debug"}, strings.NewReader("1,2,3\n4,5\n"), &out)
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "0.0000")
	assert.Contains(t, s, "0.5000")
	assert.Contains(t, s, "1.0000")
	assert.Contains(t, strings.ToLower(s), "range diagnostics")
}

func TestRunEmptySampleIsNull(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-value", "3"}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "null")
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-p", "0.5", "1", "2"}, strings.NewReader(""), &out)
	assert.Error(t, err)
}
