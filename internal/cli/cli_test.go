package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/internal/paths"
	"github.com/mesh-intelligence/nitrate/internal/rpc"
)

// cliDirs is one isolated installation.
type cliDirs struct {
	config string
	data   string
}

func newDirs(t *testing.T) cliDirs {
	t.Helper()
	for _, k := range []string{paths.EnvConfigDir, paths.EnvDataDir, "NITRATE_USER", "NITRATE_ASYNC_MODE", "NITRATE_REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	return cliDirs{config: filepath.Join(root, "config"), data: filepath.Join(root, "data")}
}

type result struct {
	stdout string
	stderr string
	code   int
}

func (d cliDirs) run(t *testing.T, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config-dir", d.config, "--data-dir", d.data}, args...)
	code := Run(full, &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

// ok runs args as admin in JSON mode, requires success and decodes stdout.
func (d cliDirs) ok(t *testing.T, v any, args ...string) {
	t.Helper()
	res := d.run(t, append([]string{"--as", "admin", "--json"}, args...)...)
	require.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)
	if v != nil {
		require.NoError(t, json.Unmarshal([]byte(res.stdout), v), "stdout: %s", res.stdout)
	}
}

func initialized(t *testing.T) cliDirs {
	t.Helper()
	d := newDirs(t)
	res := d.run(t, "init", "--admin", "admin", "--password", "pw")
	require.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)
	return d
}

func TestVersion(t *testing.T) {
	d := newDirs(t)
	res := d.run(t, "version")
	assert.Equal(t, exitSuccess, res.code)
	assert.Contains(t, res.stdout, "nitrate dev")
	assert.Contains(t, res.stdout, modulePath)
	assert.NoDirExists(t, d.config, "version needs no config directory")
}

func TestInit(t *testing.T) {
	d := initialized(t)

	assert.FileExists(t, filepath.Join(d.config, "config.yaml"))
	assert.DirExists(t, d.data)

	var users []map[string]any
	d.ok(t, &users, "user", "list")
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0]["username"])
	assert.Equal(t, true, users[0]["is_superuser"])
}

func TestUserCommands(t *testing.T) {
	d := initialized(t)

	d.ok(t, nil, "user", "add", "tess", "tess@example.com", "--password", "pw")
	var u map[string]any
	d.ok(t, &u, "user", "grant", "tess", "testruns.change_testcaserun")
	assert.Equal(t, []any{"testruns.change_testcaserun"}, u["permissions"])

	res := d.run(t, "user", "grant", "tess", "rockets.launch")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "unknown permission")

	res = d.run(t, "user", "grant", "nobody", "comments.add_comment")
	assert.Equal(t, exitUserError, res.code)
}

func TestWorkflow(t *testing.T) {
	d := initialized(t)

	var product map[string]any
	d.ok(t, &product, "product", "create", "Widget", "--version", "1.0", "--build", "b1")
	assert.Equal(t, "Widget", product["name"])

	var plan map[string]any
	d.ok(t, &plan, "plan", "create", "Smoke", "--product", "Widget", "--version", "1.0", "--type", "Smoke", "--text", "Quick checks", "--tag", "nightly")
	planID := plan["plan_id"].(string)

	var c map[string]any
	d.ok(t, &c, "case", "create", "Boots", "--plan", planID, "--status", "CONFIRMED", "--action", "Power on", "--effect", "Login prompt")
	caseID := c["case_id"].(string)
	d.ok(t, nil, "case", "create", "Draft idea", "--plan", planID)

	var shownCase map[string]any
	d.ok(t, &shownCase, "case", "show", caseID)
	assert.Equal(t, "Power on", shownCase["text"].(map[string]any)["action"])
	assert.Equal(t, []any{planID}, shownCase["plan_ids"])

	var shownPlan map[string]any
	d.ok(t, &shownPlan, "plan", "show", planID)
	assert.Equal(t, "Quick checks", shownPlan["text"])
	assert.Equal(t, []any{"nightly"}, shownPlan["tags"])
	assert.Len(t, shownPlan["cases"], 2)

	var run map[string]any
	d.ok(t, &run, "run", "create", "Nightly 1", "--plan", planID, "--build", "b1")
	runID := run["run_id"].(string)

	var shownRun struct {
		CaseRuns []struct {
			CaseRunID string `json:"case_run_id"`
			CaseID    string `json:"case_id"`
		} `json:"case_runs"`
	}
	d.ok(t, &shownRun, "run", "show", runID)
	require.Len(t, shownRun.CaseRuns, 1, "only confirmed cases join the run")
	assert.Equal(t, caseID, shownRun.CaseRuns[0].CaseID)
	caseRunID := shownRun.CaseRuns[0].CaseRunID

	var cr map[string]any
	d.ok(t, &cr, "caserun", "status", caseRunID, "passed", "--notes", "clean boot")
	assert.Equal(t, "PASSED", cr["status"])
	assert.Equal(t, "clean boot", cr["notes"])

	var st struct {
		Total           int            `json:"total"`
		Counts          map[string]int `json:"counts"`
		CompletePercent float64        `json:"complete_percent"`
	}
	d.ok(t, &st, "run", "stats", runID)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Counts["PASSED"])
	assert.Equal(t, 100.0, st.CompletePercent)

	var comment map[string]any
	d.ok(t, &comment, "comment", "add", "caserun", caseRunID, "looks", "good")
	assert.Equal(t, "looks good", comment["text"])

	var runs []map[string]any
	d.ok(t, &runs, "run", "list", "--running")
	assert.Len(t, runs, 1)

	var cases []map[string]any
	d.ok(t, &cases, "case", "list", "--plan", planID, "--status", "CONFIRMED")
	assert.Len(t, cases, 1)

	res := d.run(t, "plan", "list")
	assert.Equal(t, exitSuccess, res.code)
	assert.Contains(t, res.stdout, "Smoke")
}

func TestImportExport(t *testing.T) {
	d := initialized(t)
	d.ok(t, nil, "product", "create", "Widget", "--version", "1.0")
	var src, dst map[string]any
	d.ok(t, &src, "plan", "create", "Source", "--product", "Widget", "--version", "1.0")
	d.ok(t, &dst, "plan", "create", "Target", "--product", "Widget", "--version", "1.0")
	d.ok(t, nil, "case", "create", "Boots", "--plan", src["plan_id"].(string), "--status", "CONFIRMED", "--action", "Power on", "--tag", "smoke")

	file := filepath.Join(t.TempDir(), "cases.xml")
	res := d.run(t, "export", src["plan_id"].(string), file)
	require.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<summary>Boots</summary>")

	var imported []map[string]any
	d.ok(t, &imported, "import", dst["plan_id"].(string), file)
	require.Len(t, imported, 1)
	assert.Equal(t, "Boots", imported[0]["summary"])

	res = d.run(t, "export", dst["plan_id"].(string))
	require.Equal(t, exitSuccess, res.code)
	assert.Contains(t, res.stdout, "Power on")

	bad := filepath.Join(t.TempDir(), "bad.xml")
	require.NoError(t, os.WriteFile(bad, []byte(`<testopia version="9.9"></testopia>`), 0o644))
	res = d.run(t, "import", dst["plan_id"].(string), bad)
	assert.Equal(t, exitUserError, res.code)
}

func TestDumpRestore(t *testing.T) {
	d := initialized(t)
	d.ok(t, nil, "product", "create", "Widget")

	dump := filepath.Join(t.TempDir(), "dump")
	res := d.run(t, "dump", dump)
	require.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)
	assert.FileExists(t, filepath.Join(dump, "products.jsonl"))

	d.ok(t, nil, "product", "create", "Gadget")

	res = d.run(t, "restore", dump)
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "--yes")

	res = d.run(t, "restore", dump, "--yes")
	require.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)

	var products []map[string]any
	d.ok(t, &products, "product", "list")
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0]["name"])
}

func TestSeed(t *testing.T) {
	d := initialized(t)
	file := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
users:
  - {username: tess, email: tess@example.com}
products:
  - {name: Widget, versions: ["1.0"], builds: [b1]}
plans:
  - name: Smoke
    product: Widget
    version: "1.0"
    cases:
      - {summary: Boots, status: CONFIRMED, tester: tess}
runs:
  - {summary: Nightly, plan: Smoke, build: b1}
`), 0o644))

	var res map[string]int
	d.ok(t, &res, "seed", file)
	assert.Equal(t, map[string]int{"users": 1, "trackers": 0, "products": 1, "plans": 1, "cases": 1, "runs": 1}, res)

	out := d.run(t, "seed", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, exitUserError, out.code)
}

func TestExitCodes(t *testing.T) {
	d := initialized(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "unknown flag", args: []string{"product", "list", "--bogus"}, want: exitUserError},
		{name: "wrong arg count", args: []string{"plan", "show"}, want: exitUserError},
		{name: "missing entity", args: []string{"plan", "show", "nope"}, want: exitUserError},
		{name: "no acting user", args: []string{"plan", "create", "P", "--product", "W", "--version", "1"}, want: exitUserError},
		{name: "bad status", args: []string{"--as", "admin", "caserun", "status", "nope", "GREAT"}, want: exitUserError},
		{name: "bad log level", args: []string{"--log-level", "loud", "product", "list"}, want: exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.run(t, tt.args...)
			assert.Equal(t, tt.want, res.code, "stderr: %s", res.stderr)
			assert.Contains(t, res.stderr, "nitrate: ")
		})
	}

	t.Run("negative busy timeout", func(t *testing.T) {
		t.Setenv("NITRATE_SQLITE_BUSY_TIMEOUT", "-1s")
		res := d.run(t, "product", "list")
		assert.Equal(t, exitUserError, res.code, "stderr: %s", res.stderr)
	})

	t.Run("unusable data dir", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))
		var out, errOut bytes.Buffer
		code := Run([]string{"--config-dir", d.config, "--data-dir", filepath.Join(blocker, "db"), "product", "list"}, &out, &errOut)
		assert.Equal(t, exitSysError, code, "stderr: %s", errOut.String())
	})
}

func TestConfigFromEnvironment(t *testing.T) {
	d := initialized(t)
	t.Setenv("NITRATE_USER", "admin")

	res := d.run(t, "--json", "product", "create", "Widget", "--version", "1.0")
	require.Equal(t, exitSuccess, res.code)
	res = d.run(t, "--json", "plan", "create", "Smoke", "--product", "Widget", "--version", "1.0")
	assert.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)
}

func TestServe(t *testing.T) {
	d := initialized(t)
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	e := &env{flags: rootFlags{configDir: d.config, dataDir: d.data}}
	require.NoError(t, e.setup(cmd, nil))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- e.serve(ctx, "127.0.0.1:0", ready) }()
	addr := <-ready

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	require.NoError(t, rpc.EncodeCall(&body, "Version.get"))
	resp, err = http.Post("http://"+addr+"/xmlrpc/", "text/xml", &body)
	require.NoError(t, err)
	v, err := rpc.DecodeResponse(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, Version, v)

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	metricsBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(metricsBody), "nitrate_xmlrpc_calls_total"))

	cancel()
	assert.NoError(t, <-done)
}

func TestWorkerRequiresQueueMode(t *testing.T) {
	d := initialized(t)
	res := d.run(t, "worker")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "queue")
}
