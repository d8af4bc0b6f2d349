// Package users manages SSH login accounts on cluster hosts. It connects
// to a host over SSH and reconciles local OS accounts and their authorized
// keys against a declarative user list.
package users

import (
	"fmt"
	"net"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type User struct {
	Name string `yaml:"name"`
	// State is "present" (default) or "absent"
	State      string   `yaml:"state"`
	Shell      string   `yaml:"shell"`
	Groups     []string `yaml:"groups"`
	PublicKeys []string `yaml:"public_keys"`
}

type userFile struct {
	Users []User `yaml:"users"`
}

var nameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

// ReadFile loads a user list from a YAML file and validates it.
func ReadFile(path string) ([]User, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var file userFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	for i, user := range file.Users {
		if !nameRegex.MatchString(user.Name) {
			return nil, fmt.Errorf("users[%d].name '%s' is not a valid account name", i, user.Name)
		}
		switch user.State {
		case "", "present", "absent":
		default:
			return nil, fmt.Errorf("users[%d].state must be 'present' or 'absent'", i)
		}
		if user.State != "absent" && len(user.PublicKeys) == 0 {
			return nil, fmt.Errorf("users[%d] has no public keys; the account would be unreachable", i)
		}
	}

	return file.Users, nil
}

// ResolveHost resolves a DNS name to the address of an already-running
// host. Resolution failures surface before any SSH attempt is made.
func ResolveHost(host string) (string, error) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return "", fmt.Errorf("failed to resolve host '%s': %w", host, err)
	}
	return addrs[0], nil
}
