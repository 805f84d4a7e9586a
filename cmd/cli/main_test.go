package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/testutil"
)

const job = `
input:
  path: census.csv
attributes:
  - {name: name, role: identifier}
  - name: age
    role: quasi_identifier
    hierarchy: {type: interval, widths: [10, 20], top: true}
  - name: sex
    role: quasi_identifier
    hierarchy: {type: file, path: sex.csv}
  - name: zip
    role: quasi_identifier
    hierarchy: {type: redaction}
  - {name: disease, role: sensitive}
privacy_models:
  - {type: k_anonymity, k: 2}
suppression:
  limit: 0.1
output:
  path: out/released.csv
logging:
  level: error
`

func setupJob(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("name,age,sex,zip,disease\n")
	for _, row := range testutil.CensusRows {
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "census.csv"), []byte(b.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sex.csv"), []byte("female;*\nmale;*\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(job), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stdout)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestAnonymizeCommand(t *testing.T) {
	dir := setupJob(t)
	released := filepath.Join(dir, "released.csv")

	out, err := execute(t, "anonymize", "--config", filepath.Join(dir, "job.yaml"), "--output", released, "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "Transformation:")
	assert.Contains(t, out, "Output data")
	assert.Contains(t, out, "Records at risk:")

	content, err := os.ReadFile(released)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, "age,sex,zip,disease", lines[0])
	assert.Len(t, lines, 13)
	assert.NotContains(t, string(content), "Ada")

	report, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(report, &decoded))
	assert.Equal(t, float64(12), decoded["records"])
	assert.NotEmpty(t, decoded["run_id"])
	assert.Contains(t, decoded, "risk")

	out, err = execute(t, "risk", "--config", filepath.Join(dir, "job.yaml"), "--input", released, "--format", "json")
	require.NoError(t, err)
	var summary risk.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 12, summary.Records)
	assert.LessOrEqual(t, summary.HighestRisk, 0.5)
	assert.Equal(t, risk.FamilySample, summary.Estimator)
}

func TestAnonymizeCommandInfeasible(t *testing.T) {
	dir := setupJob(t)
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(job, "k: 2", "k: 13", 1)), 0o644))

	_, err := execute(t, "anonymize", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feasible transformation")
}

func TestLatticeCommand(t *testing.T) {
	dir := setupJob(t)
	out, err := execute(t, "lattice", "--config", filepath.Join(dir, "job.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "age: height 3")
	assert.Contains(t, out, "sex: height 1")
	assert.Contains(t, out, "zip: height 5")
	assert.Contains(t, out, "Lattice: 48 nodes")
}

func TestConfigFlagRequired(t *testing.T) {
	_, err := execute(t, "lattice")
	assert.Error(t, err)
}
