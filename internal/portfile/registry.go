// Package portfile publishes the primary instance's ephemeral listener port
// as a small text file for discovery by later launches.
package portfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Registry reads and writes {dir}/{appID}.port.
type Registry struct {
	path string
}

func New(dir, appID string) *Registry {
	return &Registry{path: filepath.Join(dir, appID+".port")}
}

// Publish overwrites the port file with the decimal port. The write is not
// atomic; Read treats partial content as absent.
func (r *Registry) Publish(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("portfile: publish out-of-range port %d", port)
	}
	if err := os.WriteFile(r.path, []byte(strconv.Itoa(port)+"\n"), 0o600); err != nil {
		return fmt.Errorf("portfile: publish %s: %w", r.path, err)
	}
	return nil
}

// Read returns the published port. The second return is false when the file
// is missing, unparsable, or names a port outside 1..65535 — all of which
// mean "no primary detectable".
func (r *Registry) Read() (int, bool) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	if port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// Clear deletes the port file. A missing file is not an error.
func (r *Registry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("portfile: clear %s: %w", r.path, err)
	}
	return nil
}

// Path returns the port file location.
func (r *Registry) Path() string {
	return r.path
}
