package tracker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Credential is what a tracker integration authenticates with.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// ResolveCredential returns the credential for t. NoNeed trackers return
// nil. Stored values win over the secret file; the secret file is YAML with
// username, password and token keys. Returns ErrCredentialMissing when the
// credential type's values cannot be found.
func ResolveCredential(t *types.IssueTracker) (*Credential, error) {
	switch t.CredentialType {
	case "", types.CredentialNoNeed:
		return nil, nil
	case types.CredentialUserPwd:
		if t.Username != "" && t.Password != "" {
			return &Credential{Username: t.Username, Password: t.Password}, nil
		}
		c, err := readSecretFile(t)
		if err != nil {
			return nil, err
		}
		if c.Username == "" || c.Password == "" {
			return nil, fmt.Errorf("%w: %s needs username and password", ErrCredentialMissing, t.Name)
		}
		return &Credential{Username: c.Username, Password: c.Password}, nil
	case types.CredentialToken:
		if t.Token != "" {
			return &Credential{Token: t.Token}, nil
		}
		c, err := readSecretFile(t)
		if err != nil {
			return nil, err
		}
		if c.Token == "" {
			return nil, fmt.Errorf("%w: %s needs a token", ErrCredentialMissing, t.Name)
		}
		return &Credential{Token: c.Token}, nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrInvalidCredential, t.CredentialType)
}

func readSecretFile(t *types.IssueTracker) (*Credential, error) {
	if t.SecretFile == "" {
		return nil, fmt.Errorf("%w: %s has no stored credential or secret file", ErrCredentialMissing, t.Name)
	}
	data, err := os.ReadFile(t.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading secret file: %w", err)
	}
	var c Credential
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing secret file %s: %w", t.SecretFile, err)
	}
	return &c, nil
}
