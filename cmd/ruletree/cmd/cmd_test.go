package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redItemJSON = `{"type":"combine","aggregator":"all","value":true,"conditions":[{"type":"found","attribute":null,"operator":null,"aggregator":"all","value":true,"conditions":[{"type":"leaf","attribute":"color","operator":"==","value":"red"}]}]}`

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeEval(t *testing.T, out string) evalOutput {
	t.Helper()
	var res evalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	return res
}

func TestEvalCommand(t *testing.T) {
	t.Run("json rule and subject", func(t *testing.T) {
		out, err := run(t, "eval", "--rule", "testdata/red_item.json", "--subject", "testdata/red_cart.json")
		require.NoError(t, err)

		res := decodeEval(t, out)
		assert.True(t, res.Matched)
		assert.Equal(t, "discount", string(res.Kind))
		assert.Equal(t, "no_match", res.Policy)
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("yaml rule and subject", func(t *testing.T) {
		out, err := run(t, "eval", "--rule", "testdata/red_item.yaml", "--subject", "testdata/blue_cart.yaml")
		require.NoError(t, err)
		assert.False(t, decodeEval(t, out).Matched)
	})

	t.Run("broken payment restriction stays in force", func(t *testing.T) {
		out, err := run(t, "eval", "--rule", "testdata/broken.json", "--subject", "testdata/red_cart.json", "--kind", "payment_restriction")
		require.NoError(t, err)

		res := decodeEval(t, out)
		assert.True(t, res.Matched)
		assert.Equal(t, "match", res.Policy)
		require.Len(t, res.Diagnostics, 1)
		assert.Equal(t, "deserialization", res.Diagnostics[0].Severity)
	})

	t.Run("broken discount does not apply", func(t *testing.T) {
		out, err := run(t, "eval", "--rule", "testdata/broken.json", "--subject", "testdata/red_cart.json")
		require.NoError(t, err)
		assert.False(t, decodeEval(t, out).Matched)
	})

	t.Run("derived attributes", func(t *testing.T) {
		out, err := run(t, "eval", "--rule", "testdata/big_rows.json", "--subject", "testdata/red_cart.json", "--derived", "testdata/derived.yaml")
		require.NoError(t, err)
		assert.True(t, decodeEval(t, out).Matched)

		out, err = run(t, "eval", "--rule", "testdata/big_rows.json", "--subject", "testdata/red_cart.json")
		require.NoError(t, err)
		assert.False(t, decodeEval(t, out).Matched, "row_total is absent without derived attributes")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := run(t, "eval", "--rule", "testdata/red_item.json", "--subject", "testdata/red_cart.json", "--kind", "coupon")
		assert.Error(t, err)
	})

	t.Run("missing flags", func(t *testing.T) {
		_, err := run(t, "eval", "--rule", "testdata/red_item.json")
		assert.Error(t, err)
	})

	t.Run("missing subject file", func(t *testing.T) {
		_, err := run(t, "eval", "--rule", "testdata/red_item.json", "--subject", "testdata/nope.json")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConvertCommand(t *testing.T) {
	t.Run("legacy xml to json", func(t *testing.T) {
		out, err := run(t, "convert", "testdata/legacy.xml")
		require.NoError(t, err)
		assert.Equal(t,
			`{"type":"combine","aggregator":"any","value":true,"conditions":[{"type":"leaf","attribute":"group_id","operator":"()","value":["3","4"]}]}`+"\n",
			out)
	})

	t.Run("yaml to json", func(t *testing.T) {
		out, err := run(t, "convert", "testdata/red_item.yaml", "--to", "json")
		require.NoError(t, err)
		assert.Equal(t, redItemJSON+"\n", out)
	})

	t.Run("round trip through xml file", func(t *testing.T) {
		xmlPath := filepath.Join(t.TempDir(), "red.xml")
		_, err := run(t, "convert", "testdata/red_item.json", "--to", "xml", "-o", xmlPath)
		require.NoError(t, err)

		data, err := os.ReadFile(xmlPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<type>found</type>")

		out, err := run(t, "convert", xmlPath, "--to", "json")
		require.NoError(t, err)
		assert.Equal(t, redItemJSON+"\n", out)
	})

	t.Run("explicit input format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rule.txt")
		require.NoError(t, os.WriteFile(path, []byte("type: combine\naggregator: all\nvalue: true\nconditions: []\n"), 0o644))

		out, err := run(t, "convert", path, "--from", "yaml")
		require.NoError(t, err)
		assert.Equal(t, `{"type":"combine","aggregator":"all","value":true,"conditions":[]}`+"\n", out)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "convert", "testdata/red_item.json", "--to", "toml")
		assert.Error(t, err)
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := run(t, "convert", "testdata/broken.json", "--to", "yaml")
		assert.Error(t, err)
	})
}

func TestCheckCommand(t *testing.T) {
	t.Run("valid tree", func(t *testing.T) {
		out, err := run(t, "check", "testdata/red_item.json")
		require.NoError(t, err)
		assert.Contains(t, out, "nodes: 3\n")
		assert.Contains(t, out, "depth: 3\n")
		assert.Contains(t, out, "(items=100)")
		assert.Contains(t, out, "ok\n")
	})

	t.Run("yaml tree", func(t *testing.T) {
		out, err := run(t, "check", "testdata/red_item.yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "nodes: 3\n")
	})

	t.Run("empty filter", func(t *testing.T) {
		out, err := run(t, "check", "testdata/empty_filter.json")
		assert.ErrorIs(t, err, errCheckFailed)
		assert.Contains(t, out, "error:")
	})

	t.Run("over cost limit", func(t *testing.T) {
		out, err := run(t, "check", "testdata/red_item.json", "--max-cost", "1")
		assert.ErrorIs(t, err, errCheckFailed)
		assert.Contains(t, out, "exceeds maximum evaluation cost")
	})

	t.Run("negative items", func(t *testing.T) {
		_, err := run(t, "check", "testdata/red_item.json", "--items", "-1")
		assert.Error(t, err)
	})

	t.Run("malformed tree", func(t *testing.T) {
		_, err := run(t, "check", "testdata/broken.json")
		assert.Error(t, err)
	})
}

func TestMigrateCommand(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "ruletree.db")

	out, err := run(t, "migrate", "status", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "MIGRATION")
	assert.Regexp(t, `001_initial_schema\S*\s+pending`, out)

	out, err = run(t, "migrate", "up", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "applied 001_initial_schema")

	out, err = run(t, "migrate", "up", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "database is up to date\n", out)

	out, err = run(t, "migrate", "status", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Regexp(t, `001_initial_schema\S*\s+applied`, out)
}

func TestServeCommand_RequiresMigrations(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "ruletree.db")

	_, err := run(t, "serve", "--db-url", dbURL)
	assert.ErrorContains(t, err, "not applied")
}

func TestServeCommand_PortConflict(t *testing.T) {
	_, err := run(t, "serve", "--grpc-port", "9000", "--http-port", "9000")
	assert.Error(t, err)
}

func TestServeCommand_BadDerived(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "ruletree.db")
	path := filepath.Join(t.TempDir(), "derived.yaml")
	require.NoError(t, os.WriteFile(path, []byte("row_total: \"attrs.price *\"\n"), 0o644))

	_, err := run(t, "serve", "--db-url", dbURL, "--derived", path)
	assert.ErrorContains(t, err, "compile error")
}

func TestRootOptions_LoadConfig(t *testing.T) {
	opts := &RootOptions{DBURL: "sqlite://./other.db", LogLevel: "debug", LogFormat: "json"}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://./other.db", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = (&RootOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}).loadConfig()
	assert.Error(t, err)
}

func TestLogLevelValidated(t *testing.T) {
	_, err := run(t, "migrate", "status", "--db-url", "sqlite://"+filepath.Join(t.TempDir(), "x.db"), "--log-level", "loud")
	assert.Error(t, err)
}
