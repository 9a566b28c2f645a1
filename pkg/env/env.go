package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Empty values count as unset because container runtimes often export blank
// placeholders.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
