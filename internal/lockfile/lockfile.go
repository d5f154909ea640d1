// Package lockfile reads and writes the "port|pid|secret" files that local
// helper processes (the agent daemon, the tray app) use to advertise themselves.
package lockfile

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

var findProcessFunc = ps.FindProcess

// ErrNotRunning means the lockfile is missing or names a dead or foreign process.
var ErrNotRunning = errors.New("process is not running")

// Lock is the content of a lockfile.
type Lock struct {
	Port   int
	PID    int
	Secret string
}

// BaseURL is the loopback address the lock owner listens on.
func (l Lock) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", l.Port)
}

func (l Lock) String() string {
	return fmt.Sprintf("%d|%d|%s", l.Port, l.PID, l.Secret)
}

// Parse decodes "port|pid|secret".
func Parse(content string) (Lock, error) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return Lock{}, errors.New("lockfile is malformed")
	}

	if strings.TrimSpace(parts[0]) == "" {
		return Lock{}, errors.New("port in lockfile is empty")
	}
	port, err := strconv.Atoi(parts[0])
	if err != nil {
		return Lock{}, errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return Lock{}, fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Lock{}, errors.New("invalid process ID in lockfile")
	}

	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return Lock{}, errors.New("secret in lockfile is empty")
	}
	return Lock{Port: port, PID: pid, Secret: secret}, nil
}

// Find reads the lockfile at path and checks that its PID is a live process
// whose executable starts with processName.
func Find(path, processName string) (Lock, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Lock{}, fmt.Errorf("%s: %w", processName, ErrNotRunning)
	}

	lock, err := Parse(string(content))
	if err != nil {
		return Lock{}, err
	}

	process, err := findProcessFunc(lock.PID)
	if err != nil || process == nil {
		return Lock{}, fmt.Errorf("%s (pid %d): %w", processName, lock.PID, ErrNotRunning)
	}
	if !strings.HasPrefix(process.Executable(), processName) {
		return Lock{}, fmt.Errorf("process with PID %d is not %s (is %s): %w", lock.PID, processName, process.Executable(), ErrNotRunning)
	}
	return lock, nil
}

// Write creates the lockfile with owner-only permissions.
func Write(path string, lock Lock) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}
	return os.WriteFile(path, []byte(lock.String()), 0600)
}

// Remove deletes the lockfile if it still belongs to pid.
func Remove(path string, pid int) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if lock, err := Parse(string(content)); err == nil && lock.PID != pid {
		return nil
	}
	return os.Remove(path)
}

// NewSecret returns a random hex token for the secret field.
func NewSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
