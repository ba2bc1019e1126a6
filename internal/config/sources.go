package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "CHATSYNC_"

// StringSlice is a flag.Value holding a comma-separated list. Each Set
// replaces the previous value.
type StringSlice []string

func (s *StringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *StringSlice) Set(value string) error {
	*s = nil
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// explicitFlags returns the names of flags set on the command line.
func explicitFlags(fset *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// envName maps a flag name such as "heartbeat-timeout" to
// CHATSYNC_HEARTBEAT_TIMEOUT.
func envName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// Load fills every flag of fset that was not given on the command line.
// Values from the YAML file at path win over CHATSYNC_* environment
// variables, which may also come from a .env file in the working
// directory. An empty path skips the file.
func Load(fset *flag.FlagSet, path string) error {
	explicit := explicitFlags(fset)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var err error
	fset.VisitAll(func(f *flag.Flag) {
		if err != nil || explicit[f.Name] {
			return
		}
		if v, ok := os.LookupEnv(envName(f.Name)); ok {
			if serr := fset.Set(f.Name, v); serr != nil {
				err = fmt.Errorf("%s: %w", envName(f.Name), serr)
			}
		}
	})
	if err != nil {
		return err
	}

	if path == "" {
		return nil
	}

	values, err := readFile(path)
	if err != nil {
		return err
	}

	for name, v := range values {
		if explicit[name] {
			continue
		}
		if fset.Lookup(name) == nil {
			return fmt.Errorf("%s: unknown setting %q", path, name)
		}
		if err := fset.Set(name, v); err != nil {
			return fmt.Errorf("%s: %s: %w", path, name, err)
		}
	}

	return nil
}

// readFile parses a flat YAML mapping of flag names to values. Sequences
// are joined with commas.
func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			values[k] = strings.Join(parts, ",")
		case nil:
			values[k] = ""
		default:
			values[k] = fmt.Sprint(val)
		}
	}
	return values, nil
}
