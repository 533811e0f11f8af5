package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/objgraph/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDemoCommand(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, `fetch Employee where name == "John": [John] (company.name = ACME)`)
	assert.Contains(t, out, "fetch Employee: 0 result(s)")
	assert.Contains(t, out, "notifications: 2")
}

func TestDemoCommandJSON(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "store.msgpack")
	out, err := execute(t, "--json", "demo", "--snapshot", snapshot)
	require.NoError(t, err)

	var r demoReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Len(t, r.Commit.Inserted, 2)
	assert.Equal(t, []string{"John"}, r.Employees)
	assert.Equal(t, "ACME", r.Company)
	assert.Len(t, r.Deleted.Deleted, 2)
	assert.Zero(t, r.Remaining)

	sc, err := loadModel("")
	require.NoError(t, err)
	s := store.New(sc)
	f, err := os.Open(snapshot)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, s.ReadSnapshot(f))
	assert.Equal(t, 2, s.View().Len())
}

func TestSchemaDescribe(t *testing.T) {
	path := writeFile(t, "model.yaml", demoModel)

	out, err := execute(t, "schema", "describe", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Company\n")
	assert.Contains(t, out, "  name: string indexed\n")
	assert.Contains(t, out, "employees")

	out, err = execute(t, "--json", "--model", path, "schema", "describe")
	require.NoError(t, err)
	var entities []entityInfo
	require.NoError(t, json.Unmarshal([]byte(out), &entities))
	require.Len(t, entities, 2)
	assert.Equal(t, "Employee", entities[1].Name)
	require.Len(t, entities[1].Relationships, 1)
	assert.Equal(t, "company", entities[1].Relationships[0].Name)
	assert.Equal(t, "employees", entities[1].Relationships[0].Inverse)
}

func TestSchemaDescribeErrors(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{name: "unknown key", model: "entities:\n  - name: A\n    colour: red\n"},
		{name: "unknown type", model: "entities:\n  - name: A\n    attributes:\n      - {name: x, type: decimal}\n"},
		{name: "empty", model: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "schema", "describe", "--file", writeFile(t, "model.yaml", tt.model))
			assert.Error(t, err)
		})
	}
	_, err := execute(t, "schema", "describe", "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, "objgraph.yaml", "log-level: warn\nmodel: from-file.yaml\n")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "error"}))
	cfg, err := loadConfig(path, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.GetString(cfgKeyLogLevel))
	assert.Equal(t, "from-file.yaml", cfg.GetString(cfgKeyModel))

	t.Setenv("OBJGRAPH_MODEL", "from-env.yaml")
	cfg, err = loadConfig(path, newRootCmd().Flags())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.GetString(cfgKeyLogLevel))
	assert.Equal(t, "from-env.yaml", cfg.GetString(cfgKeyModel))

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), newRootCmd().Flags())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, log)
	}
	_, err := newLogger("loud")
	assert.Error(t, err)
}
