package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lorentz83/dbSchema/internal/config"
	"github.com/Lorentz83/dbSchema/internal/domain"
)

const schemaSQL = `
CREATE TABLE tbl1 (id integer PRIMARY KEY, f1 text);
CREATE TABLE tbl2 (id integer, f2 text);
GRANT SELECT ON tbl1 TO reader;
GRANT reader TO alice;
`

type result struct {
	out, errOut string
	err         error
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DBSCHEMA_STATE", "DBSCHEMA_PRINCIPAL", "DBSCHEMA_MAX_DEPTH", "LOG_LEVEL", "LOG_FORMAT", "LISTEN_ADDR", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "DBSCHEMA_API_KEYS", "DBSCHEMA_JWT_SECRET", "DBSCHEMA_ADMINS"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func createState(t *testing.T, name string) string {
	t.Helper()
	isolateEnv(t)
	state := filepath.Join(t.TempDir(), name)
	res := run(t, schemaSQL, "create", "--state", state)
	require.NoError(t, res.err)
	assert.Equal(t, "Tables loaded: 2\n", res.out)
	return state
}

func TestCreateAndInfo(t *testing.T) {
	for _, name := range []string{"state.yaml", "state.db"} {
		t.Run(name, func(t *testing.T) {
			state := createState(t, name)

			res := run(t, "", "info", "--state", state)
			require.NoError(t, res.err)
			assert.Equal(t, "tbl1:id,f1\ntbl2:id,f2\n", res.out)

			res = run(t, "", "info", "--state", state, "-o", "json")
			require.NoError(t, res.err)
			var tables []tableInfo
			require.NoError(t, json.Unmarshal([]byte(res.out), &tables))
			assert.Equal(t, []tableInfo{
				{Name: "tbl1", Columns: []string{"id", "f1"}},
				{Name: "tbl2", Columns: []string{"id", "f2"}},
			}, tables)
		})
	}
}

func TestCreate_FromFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "schema.sql")
	require.NoError(t, os.WriteFile(script, []byte(schemaSQL), 0o600))

	res := run(t, "", "create", script, "--state", filepath.Join(dir, "s.yaml"), "--no-default-grants")
	require.NoError(t, res.err)

	res = run(t, "", "check", "--state", filepath.Join(dir, "s.yaml"), "select f1 from tbl1")
	require.Error(t, res.err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(res.err))
}

func TestCreate_Error(t *testing.T) {
	isolateEnv(t)
	state := filepath.Join(t.TempDir(), "s.yaml")

	res := run(t, "CREATE TABLE a (x int); CREATE TABLE a (y int);", "create", "--state", state)
	require.Error(t, res.err)
	assert.Equal(t, domain.KindDuplicateRelation, domain.KindOf(res.err))
	_, err := os.Stat(state)
	assert.True(t, os.IsNotExist(err))
}

func TestInfo_NoState(t *testing.T) {
	isolateEnv(t)
	res := run(t, "", "info", "--state", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, res.err, errNoState)
}

func TestParse(t *testing.T) {
	state := createState(t, "state.yaml")

	input := "select id, f1 from tbl1\n\nselect nope from tbl1\nselect f2 from tbl2 where id = 3; select f1 from tbl1\n"
	res := run(t, input, "parse", "--state", state)
	require.NoError(t, res.err)
	assert.Equal(t,
		"role,type,tbl1.id,tbl1.f1,tbl2.id,tbl2.f2\n"+
			"user,S,1,1,0,0\n"+
			"user,S,0,0,1,1\n"+
			"user,S,0,1,0,0\n",
		res.out)
	assert.Contains(t, res.errOut, "cannot evaluate line")
	assert.Contains(t, res.errOut, "line=3")
}

func TestFeature(t *testing.T) {
	state := createState(t, "state.yaml")

	input := "clerk: select f1 from tbl1 where id = ?\nbroken line\nauditor : update tbl2 set f2 = 'x'\n"
	res := run(t, input, "feature", "--state", state)
	require.NoError(t, res.err)
	assert.Equal(t,
		"role,type,tbl1.id,tbl1.f1,tbl2.id,tbl2.f2\n"+
			"clerk,S,1,1,0,0\n"+
			"auditor,U,0,0,0,1\n",
		res.out)
	assert.Contains(t, res.errOut, "line=2")
}

func TestCheck(t *testing.T) {
	state := createState(t, "state.yaml")

	res := run(t, "", "check", "--state", state, "--principal", "alice", "select f1 from tbl1 where id = 1")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "TYPE")
	assert.Contains(t, res.out, "SELECT")
	assert.Contains(t, res.out, "tbl1.f1")
	assert.Contains(t, res.out, "reader")

	res = run(t, "select f1 from tbl1", "check", "--state", state, "--principal", "alice", "-o", "json")
	require.NoError(t, res.err)
	var got []featureOutput
	require.NoError(t, json.Unmarshal([]byte(res.out), &got))
	assert.Equal(t, []featureOutput{{Type: "SELECT", Used: []string{"tbl1.f1"}, Filtered: []string{}, Roles: []string{"reader"}}}, got)

	res = run(t, "", "check", "--state", state, "--principal", "alice", "select f2 from tbl2")
	require.Error(t, res.err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(res.err))
}

func TestCheck_PrincipalFromEnv(t *testing.T) {
	state := createState(t, "state.yaml")
	t.Setenv("DBSCHEMA_PRINCIPAL", "alice")

	res := run(t, "", "check", "--state", state, "select f2 from tbl2")
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(res.err))
}

func TestCheck_MaxDepth(t *testing.T) {
	state := createState(t, "state.yaml")

	sql := "select id from tbl1 where id in (select id from tbl1 where id in (select id from tbl1))"
	res := run(t, "", "check", "--state", state, "--max-depth", "1", sql)
	assert.Equal(t, domain.KindTooDeeplyNested, domain.KindOf(res.err))

	res = run(t, "", "check", "--state", state, "--max-depth", "0", sql)
	require.Error(t, res.err)
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	res := run(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "dbschema version dev (commit: none)\n", res.out)

	res = run(t, "", "version", "-o", "json")
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"version":"dev","commit":"none"}`, res.out)
}

func TestInvalidOutputFormat(t *testing.T) {
	isolateEnv(t)
	res := run(t, "", "version", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unsupported output format")
}

func TestServe(t *testing.T) {
	state := createState(t, "state.db")

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	cfg.StatePath = state
	cfg.APIKeys = map[string]string{"root-key": "root"}
	cfg.Admins = []string{"root"}
	a := &app{cfg: cfg, logger: slog.New(slog.DiscardHandler), in: strings.NewReader(""), out: io.Discard, errOut: io.Discard}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	base := fmt.Sprintf("http://%s", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	exec := func(key, sql string) int {
		req, err := http.NewRequest(http.MethodPost, base+"/v1/admin/exec", strings.NewReader(`{"sql":"`+sql+`"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusUnauthorized, exec("", "CREATE TABLE t4 (a int)"))
	assert.Equal(t, http.StatusOK, exec("root-key", "CREATE TABLE t3 (a int)"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	// The admin change was persisted.
	res := run(t, "", "info", "--state", state)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "t3:a\n")
	assert.NotContains(t, res.out, "t4")
}

func TestServe_RequiresCredentials(t *testing.T) {
	isolateEnv(t)
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	cfg.StatePath = filepath.Join(t.TempDir(), "state.yaml")
	a := &app{cfg: cfg, logger: slog.New(slog.DiscardHandler), in: strings.NewReader(""), out: io.Discard, errOut: io.Discard}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	err = a.serve(context.Background(), ln)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBSCHEMA_API_KEYS")
}
