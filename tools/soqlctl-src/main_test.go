package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobilg/caddyserver-soqlstudio-module/savedquery"
)

const testRows = `[
	{"Id": "001", "Name": "Acme Corporation", "Industry": "Technology", "AnnualRevenue": 5000000},
	{"Id": "002", "Name": "Global Industries", "Industry": "Manufacturing", "AnnualRevenue": 12000000},
	{"Id": "003", "Name": "Tech Solutions Inc", "Industry": "Technology", "AnnualRevenue": 8500000}
]`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(args, &stdout, &stderr)
	return stdout.String(), err
}

func writeRows(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(testRows), 0o644))
	return path
}

func TestSavedLifecycle(t *testing.T) {
	for _, driver := range []string{"duckdb", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			storage := filepath.Join(t.TempDir(), "studio.db")
			base := []string{"--storage", storage, "--storage-driver", driver}
			saved := func(args ...string) (string, error) {
				return run(t, append(append([]string{"saved"}, args...), base...)...)
			}

			out, err := saved("list")
			require.NoError(t, err)
			assert.Contains(t, out, "No saved queries found.")

			out, err = saved("add", "-n", "Tech accounts", "--desc", "All tech", "-q", "SELECT Id FROM Account")
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Saved query 'Tech accounts'")

			out, err = saved("list", "--output", "json")
			require.NoError(t, err)
			var queries []savedquery.SavedQuery
			require.NoError(t, json.Unmarshal([]byte(out), &queries))
			require.Len(t, queries, 1)
			q := queries[0]
			assert.Equal(t, "Tech accounts", q.Name)
			assert.Equal(t, "All tech", q.Description)

			id := jsonID(q.ID)
			out, err = saved("update", id, "--soql", "SELECT Name FROM Account")
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Updated saved query 'Tech accounts'")

			out, err = saved("show", id)
			require.NoError(t, err)
			assert.Contains(t, out, "SELECT Name FROM Account")
			assert.Contains(t, out, "All tech")

			out, err = saved("remove", id)
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Removed saved query")

			_, err = saved("show", id)
			assert.EqualError(t, err, "saved query "+id+" not found")
		})
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestSavedErrors(t *testing.T) {
	_, err := run(t, "saved", "list")
	assert.ErrorContains(t, err, "storage path is required")

	storage := filepath.Join(t.TempDir(), "studio.db")

	_, err = run(t, "saved", "add", "-n", "   ", "-q", "SELECT Id FROM Account", "-s", storage)
	assert.EqualError(t, err, "query name must not be empty")

	_, err = run(t, "saved", "add", "-n", "missing soql", "-s", storage)
	assert.Error(t, err)

	_, err = run(t, "saved", "show", "abc", "-s", storage)
	assert.EqualError(t, err, `invalid saved query id "abc"`)

	_, err = run(t, "saved", "remove", "42", "-s", storage)
	assert.EqualError(t, err, "saved query 42 not found")
}

func TestStorageFromEnvironment(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "studio.sqlite")
	t.Setenv("SOQLCTL_STORAGE_PATH", storage)
	t.Setenv("SOQLCTL_STORAGE_DRIVER", "sqlite")

	_, err := run(t, "saved", "add", "-n", "env", "-q", "SELECT Id FROM Account")
	require.NoError(t, err)

	out, err := run(t, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "env")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "studio.sqlite")
	logFile := filepath.Join(dir, "soqlctl.log")
	cfg := filepath.Join(dir, "soqlctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"storage:\n  driver: sqlite\n  path: "+storage+"\n"+
			"log:\n  level: debug\n  file: "+logFile+"\n"+
			"output: json\n"), 0o644))

	_, err := run(t, "saved", "add", "-c", cfg, "-n", "from config", "-q", "SELECT Id FROM Account")
	require.NoError(t, err)

	out, err := run(t, "saved", "list", "-c", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "["), "expected JSON output, got %q", out)

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Opened studio storage")

	_, err = run(t, "saved", "list", "-c", filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestInvalidGlobalFlags(t *testing.T) {
	_, err := run(t, "suggest", "--output", "xml")
	assert.ErrorContains(t, err, "invalid output mode")

	_, err = run(t, "suggest", "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestView(t *testing.T) {
	rows := writeRows(t)

	out, err := run(t, "view", "-i", rows,
		"--filter", "Industry:equals:Technology",
		"--sort", "AnnualRevenue:desc",
		"--columns", "Name,AnnualRevenue")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{"Name", "AnnualRevenue"}, strings.Fields(lines[0]))
	assert.True(t, strings.HasPrefix(lines[2], "Tech Solutions Inc"))
	assert.True(t, strings.HasPrefix(lines[3], "Acme Corporation"))
	assert.Contains(t, out, "Page 1 of 1 (2 results)")
}

func TestViewJSON(t *testing.T) {
	rows := writeRows(t)

	out, err := run(t, "view", "-i", rows, "--output", "json", "--page-size", "2", "--page", "2", "--search", "i")
	require.NoError(t, err)

	var resp struct {
		Data       []map[string]any `json:"data"`
		Pagination struct {
			Page         int `json:"page"`
			TotalResults int `json:"total_results"`
			TotalPages   int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Pagination.Page)
	assert.Equal(t, 3, resp.Pagination.TotalResults)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "003", resp.Data[0]["Id"])
}

func TestViewFromStdin(t *testing.T) {
	var stdout bytes.Buffer
	a := newApp()
	defer a.close()

	cmd := a.rootCmd()
	cmd.SetArgs([]string{"view", "--expr", "row.AnnualRevenue > 10000000.0"})
	cmd.SetIn(strings.NewReader(testRows))
	cmd.SetOut(&stdout)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "Global Industries")
	assert.NotContains(t, stdout.String(), "Acme Corporation")
}

func TestViewErrors(t *testing.T) {
	rows := writeRows(t)

	_, err := run(t, "view", "-i", rows, "--filter", "Industry:like:Tech")
	assert.ErrorContains(t, err, "invalid operator")

	_, err = run(t, "view", "-i", rows, "--sort", "Name:sideways")
	assert.Error(t, err)

	_, err = run(t, "view", "-i", rows, "--page-size", "0")
	assert.Error(t, err)

	_, err = run(t, "view", "-i", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to open input")
}

func TestExport(t *testing.T) {
	rows := writeRows(t)
	target := filepath.Join(t.TempDir(), "tech.csv")

	out, err := run(t, "export", "-i", rows, "--filter", "Industry:equals:Technology", "--sort", "Id:asc", "--file", target)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Exported 2 rows to "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t,
		"Id,Name,Industry,AnnualRevenue\n001,Acme Corporation,Technology,5000000\n003,Tech Solutions Inc,Technology,8500000\n",
		string(data))
}

func TestExportCompressedToStdout(t *testing.T) {
	rows := writeRows(t)

	out, err := run(t, "export", "-i", rows, "-f", "json", "--compress", "gzip", "--file", "-")
	require.NoError(t, err)

	zr, err := gzip.NewReader(strings.NewReader(out))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(plain, &decoded))
	assert.Len(t, decoded, 3)
}

func TestExportErrors(t *testing.T) {
	rows := writeRows(t)

	_, err := run(t, "export", "-i", rows, "-f", "pdf")
	assert.Error(t, err)

	_, err = run(t, "export", "-i", rows, "--compress", "rar")
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	out, err := run(t, "suggest", "from", "contact")
	require.NoError(t, err)
	assert.Equal(t, "SELECT Id, Name, Email FROM Contact\n", out)

	out, err = run(t, "suggest", "account", "--limit", "2", "--output", "json")
	require.NoError(t, err)
	var matches []string
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	assert.Equal(t, []string{"SELECT Id, Name FROM Account", "SELECT COUNT() FROM Account"}, matches)

	out, err = run(t, "suggest", "nothing matches this")
	require.NoError(t, err)
	assert.Equal(t, "No suggestions found.\n", out)
}
