package protected

import (
	"fmt"
	"time"

	"github.com/hashicorp/vault-client-go"
)

// Vault is a client instance to Hashicorp Vault secure storage. The transit
// engine behind it holds the JWT signing key pair, so private key material
// never enters this process.
type Vault struct {
	Client *vault.Client
}

// NewVaultClient creates a new instance of Vault client
func NewVaultClient(address, token string) (*Vault, error) {
	client, err := vault.New(
		vault.WithAddress(address),
		vault.WithRequestTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating new vault client instance: %w", err)
	}
	if err = client.SetToken(token); err != nil {
		return nil, fmt.Errorf("error while setting token: %w", err)
	}
	return &Vault{Client: client}, nil
}
