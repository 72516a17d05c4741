// Package flagx lets a component parse its own flags out of a command line
// shared with other components.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// ParseOwn parses into fs only the arguments that name flags defined on fs.
// Both "-name" and "--name" spellings are recognised, with the value either
// joined by "=" or in the next argument. Boolean flags never take the next
// argument as their value. Unknown flags and positional arguments are
// skipped, so fs never fails on flags that belong to someone else.
func ParseOwn(fs *flag.FlagSet, args []string) error {
	return fs.Parse(OwnArgs(fs, args))
}

// OwnArgs returns the subset of args ParseOwn would hand to fs.Parse.
func OwnArgs(fs *flag.FlagSet, args []string) []string {
	own := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		name, joined := flagName(args[i])
		if name == "" {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			continue
		}

		own = append(own, args[i])
		if joined || isBoolFlag(f) {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			own = append(own, args[i+1])
			i++
		}
	}

	return own
}

// flagName extracts the flag name from arg and reports whether the value was
// joined with "=". It returns "" for anything that is not a flag.
func flagName(arg string) (string, bool) {
	if len(arg) < 2 || arg[0] != '-' || arg == "--" {
		return "", false
	}
	name := strings.TrimPrefix(arg[1:], "-")
	name, _, joined := strings.Cut(name, "=")
	return name, joined
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// ConfigFile returns the path given with -c or -config in args, or "" when
// neither is present.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = ParseOwn(fs, args)

	return path
}
