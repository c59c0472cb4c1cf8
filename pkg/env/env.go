// Package env reads settings that are needed before config.Load runs.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable the services read.
const Prefix = "PACKQUOTE_"

// Lookup returns PACKQUOTE_<name>, then the bare <name>, then fallback.
// Values are trimmed; blank counts as unset.
func Lookup(name, fallback string) string {
	for _, key := range []string{Prefix + name, name} {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
