package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"serve", "migrate", "run"} {
		require.Contains(t, out, name)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing website", args: []string{"run", "--name", "Dani", "--email", "d@x.com"}, wantErr: "missing required fields"},
		{name: "missing email", args: []string{"run", "--name", "Dani", "--website", "example.com"}, wantErr: "missing required fields"},
		{name: "bad url", args: []string{"run", "--name", "Dani", "--email", "d@x.com", "--website", "http://"}, wantErr: "not a valid URL"},
		{name: "positional args", args: []string{"run", "extra"}, wantErr: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunRequiresValidConfig(t *testing.T) {
	t.Setenv("AUDIT_LLM_API_KEY", "")

	_, err := execute(t, "run", "--name", "Dani", "--email", "d@x.com", "--website", "example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "llm.api_key is required")
}

func TestServeRequiresValidConfig(t *testing.T) {
	t.Setenv("AUDIT_LLM_API_KEY", "")

	_, err := execute(t, "serve")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("AUDIT_DB_DSN", "")
	t.Setenv("AUDIT_LLM_API_KEY", "")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	require.Contains(t, err.Error(), "db.dsn is required")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "migrate", "--config", t.TempDir()+"/absent.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}
