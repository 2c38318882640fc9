package portal

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
)

// Seed is the registry a new session starts from and a reset restores.
type Seed struct {
	Users []core.User         `json:"users"`
	Files []core.PropertyFile `json:"files"`
}

// LoadSeed reads a seed from a JSON file. An empty path yields an empty
// seed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return Seed{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, u := range seed.Users {
		if u.Role == "" {
			seed.Users[i].Role = core.RoleClient
		}
		if u.Status == "" {
			seed.Users[i].Status = core.StatusActive
		}
	}
	for i, f := range seed.Files {
		if f.Transactions == nil {
			seed.Files[i].Transactions = []core.Transaction{}
		}
	}
	return seed, nil
}
