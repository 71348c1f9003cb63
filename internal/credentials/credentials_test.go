package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmd)
	if out, ok := f.outputs[cmd]; ok {
		return out, nil
	}
	return "", errors.New("exit status 1")
}

func newTestResolver(t *testing.T, env map[string]string, mappings string, goos string, runner *fakeRunner) *Resolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault-mappings.json")
	if mappings != "" {
		require.NoError(t, os.WriteFile(path, []byte(mappings), 0o600))
	}
	r := NewResolver(path, zerolog.Nop())
	r.getenv = func(k string) string { return env[k] }
	r.runner = runner
	r.goos = goos
	return r
}

func TestResolve_EnvWins(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestResolver(t, map[string]string{"CODECOV_TOKEN": " env-token "}, `{"mappings": {"CODECOV_TOKEN": "literal"}}`, "darwin", runner)

	cred, err := r.Resolve(context.Background(), "CODECOV_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cred.Value)
	assert.Equal(t, SourceEnv, cred.Source)
	assert.Empty(t, runner.calls)
}

func TestResolve_LiteralMapping(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestResolver(t, nil, `{"mappings": {"CODECOV_TOKEN": "literal-value"}}`, "linux", runner)

	cred, err := r.Resolve(context.Background(), "CODECOV_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "literal-value", cred.Value)
	assert.Equal(t, SourceVaultMapping, cred.Source)
	assert.Empty(t, runner.calls)
}

func TestResolve_KeychainBeforeSecretManager(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"security find-generic-password -s CODECOV_TOKEN -w": "from-keychain\n",
		"op read op://Vault/codecov/token":                   "from-op\n",
	}}
	r := newTestResolver(t, nil, `{"mappings": {"CODECOV_TOKEN": "op://Vault/codecov/token"}}`, "darwin", runner)

	cred, err := r.Resolve(context.Background(), "CODECOV_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "from-keychain", cred.Value)
	assert.Equal(t, SourceKeychain, cred.Source)
}

func TestResolve_SecretManagerUsesMappedReference(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"op read op://Vault/codecov/token": "from-op\n",
	}}
	r := newTestResolver(t, nil, `{"mappings": {"CODECOV_TOKEN": "op://Vault/codecov/token"}}`, "linux", runner)

	cred, err := r.Resolve(context.Background(), "CODECOV_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "from-op", cred.Value)
	assert.Equal(t, SourceSecretManager, cred.Source)
	assert.Equal(t, []string{"op read op://Vault/codecov/token"}, runner.calls)
}

func TestResolve_DefaultReferenceAndNotFound(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestResolver(t, nil, "", "darwin", runner)

	_, err := r.Resolve(context.Background(), "ELASTIC_API_KEY")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{
		"security find-generic-password -s ELASTIC_API_KEY -w",
		"op read op://Private/ELASTIC_API_KEY/credential",
	}, runner.calls)
}

func TestCredential_Masked(t *testing.T) {
	assert.Equal(t, "****", Credential{Value: "abcd"}.Masked())
	assert.Equal(t, "******7890", Credential{Value: "1234567890"}.Masked())
}
