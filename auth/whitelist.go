package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sagarc03/hubstore"
)

// WhitelistConfig lists the addresses allowed to write.
type WhitelistConfig struct {
	Inline []string `mapstructure:"inline"` // Addresses from config
	File   string   `mapstructure:"file"`   // Path to a JSON array of addresses
}

// LoadWhitelist merges inline and file addresses into a sorted, deduplicated list.
// An empty result means writes are not restricted.
func LoadWhitelist(cfg WhitelistConfig) ([]string, error) {
	set := make(map[string]struct{})

	for _, addr := range cfg.Inline {
		if err := addAddress(set, addr); err != nil {
			return nil, fmt.Errorf("load whitelist: %w", err)
		}
	}

	if cfg.File != "" {
		fileAddrs, err := LoadWhitelistFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for _, addr := range fileAddrs {
			if err := addAddress(set, addr); err != nil {
				return nil, fmt.Errorf("load whitelist %s: %w", cfg.File, err)
			}
		}
	}

	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)

	return out, nil
}

// LoadWhitelistFile reads a JSON array of addresses:
//
//	["1AbCdEf...", "1XyZ..."]
func LoadWhitelistFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read whitelist file: %w", err)
	}

	var addrs []string
	if err := json.Unmarshal(data, &addrs); err != nil {
		return nil, fmt.Errorf("parse whitelist file: %w", err)
	}

	return addrs, nil
}

func addAddress(set map[string]struct{}, addr string) error {
	if addr == "" {
		return nil
	}
	if !hubstore.IsValidAddress(addr) {
		return fmt.Errorf("%w: invalid address %q", hubstore.ErrConfig, addr)
	}
	set[addr] = struct{}{}
	return nil
}
