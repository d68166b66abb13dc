// ABOUTME: Minimal flag parsing for management subcommands
// ABOUTME: Accepts --name value, --name=value, and bare boolean switches

package main

import (
	"fmt"
	"strings"
)

// parseFlags parses args against accepted, which maps each accepted flag
// name to whether it takes a value. Boolean switches are stored as "true".
func parseFlags(args []string, accepted map[string]bool) (map[string]string, error) {
	flags := make(map[string]string)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, ok := strings.CutPrefix(arg, "--")
		if !ok || name == "" {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}

		value, hasValue := "", false
		if n, v, found := strings.Cut(name, "="); found {
			name, value, hasValue = n, v, true
		}

		takesValue, known := accepted[name]
		if !known {
			return nil, fmt.Errorf("unknown flag --%s", name)
		}

		if !takesValue {
			if hasValue {
				return nil, fmt.Errorf("flag --%s does not take a value", name)
			}
			flags[name] = "true"
			continue
		}

		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("flag --%s requires a value", name)
			}
			i++
			value = args[i]
		}
		flags[name] = value
	}

	return flags, nil
}

// requireFlags returns an error naming the first missing flag.
func requireFlags(flags map[string]string, names ...string) error {
	for _, n := range names {
		if flags[n] == "" {
			return fmt.Errorf("--%s is required", n)
		}
	}
	return nil
}

// parseIDs splits a comma-separated primary key list. An empty string
// means no restriction and yields nil.
func parseIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	ids := []string{}
	for part := range strings.SplitSeq(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
