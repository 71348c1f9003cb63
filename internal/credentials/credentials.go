// Package credentials resolves API tokens for readers that call external
// services. Sources are tried in priority order: environment, the vault
// mapping file, the OS keychain and finally the 1Password CLI.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Source string

const (
	SourceEnv           Source = "env"
	SourceVaultMapping  Source = "vault-mapping"
	SourceKeychain      Source = "keychain"
	SourceSecretManager Source = "secret-manager"
)

const secretRefPrefix = "op://"

var ErrNotFound = errors.New("credential not found")

type Credential struct {
	Name   string
	Value  string
	Source Source
}

// Masked returns the value with all but the last four characters hidden.
func (c Credential) Masked() string {
	if len(c.Value) <= 4 {
		return strings.Repeat("*", len(c.Value))
	}
	return strings.Repeat("*", len(c.Value)-4) + c.Value[len(c.Value)-4:]
}

type vaultMappings struct {
	Mappings map[string]string `json:"mappings"`
}

type Resolver struct {
	mappingsPath string
	getenv       func(string) string
	runner       Runner
	goos         string
	timeout      time.Duration
	logger       zerolog.Logger
}

func NewResolver(mappingsPath string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		mappingsPath: mappingsPath,
		getenv:       os.Getenv,
		runner:       ExecRunner{},
		goos:         runtime.GOOS,
		timeout:      10 * time.Second,
		logger:       logger,
	}
}

// Resolve returns the first source that yields a non-empty value for name.
func (r *Resolver) Resolve(ctx context.Context, name string) (Credential, error) {
	if v := strings.TrimSpace(r.getenv(name)); v != "" {
		return Credential{Name: name, Value: v, Source: SourceEnv}, nil
	}

	ref := secretRefPrefix + "Private/" + name + "/credential"
	if mapped, ok := r.lookupMapping(name); ok {
		if !strings.HasPrefix(mapped, secretRefPrefix) {
			return Credential{Name: name, Value: mapped, Source: SourceVaultMapping}, nil
		}
		ref = mapped
	}

	if r.goos == "darwin" {
		if v, err := r.run(ctx, "security", "find-generic-password", "-s", name, "-w"); err == nil && v != "" {
			return Credential{Name: name, Value: v, Source: SourceKeychain}, nil
		} else if err != nil {
			r.logger.Debug().Err(err).Str("name", name).Msg("keychain lookup failed")
		}
	}

	v, err := r.run(ctx, "op", "read", ref)
	if err == nil && v != "" {
		return Credential{Name: name, Value: v, Source: SourceSecretManager}, nil
	}
	if err != nil {
		r.logger.Debug().Err(err).Str("name", name).Msg("secret manager lookup failed")
	}

	return Credential{}, fmt.Errorf("%s: %w", name, ErrNotFound)
}

func (r *Resolver) lookupMapping(name string) (string, bool) {
	data, err := os.ReadFile(r.mappingsPath)
	if err != nil {
		return "", false
	}
	var m vaultMappings
	if err := json.Unmarshal(data, &m); err != nil {
		r.logger.Debug().Err(err).Str("path", r.mappingsPath).Msg("vault mappings malformed")
		return "", false
	}
	v := strings.TrimSpace(m.Mappings[name])
	return v, v != ""
}

func (r *Resolver) run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner.Run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
