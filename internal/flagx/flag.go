// Package flagx lets several configuration layers share os.Args without
// tripping over each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags, together with
// their values. Both "-f value" and "-f=value" forms are recognized; a
// following argument that starts with "-" is never consumed as a value.
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	kept, _ := partition(args, allowedFlags)
	return kept
}

// StripArgs is the complement of FilterArgs: it drops the named flags and
// their values and returns everything else in order.
func StripArgs(args []string, flags []string) []string {
	_, rest := partition(args, flags)
	return rest
}

func partition(args []string, names []string) (matched, rest []string) {
	allowed := make(map[string]struct{}, len(names))
	for _, f := range names {
		allowed[f] = struct{}{}
	}

	matched = make([]string, 0, len(args))
	rest = make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				matched = append(matched, arg)
			} else {
				rest = append(rest, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			rest = append(rest, arg)
			continue
		}
		matched = append(matched, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			matched = append(matched, args[i+1])
			i++
		}
	}

	return matched, rest
}

// JsonConfigFlags returns the JSON config path given with -c or -config,
// or "" when neither is present.
func JsonConfigFlags() string {
	return stringFlag([]string{"c", "config"}, "path to JSON config file")
}

// EnvFileFlags returns the dotenv file path given with -env, or "".
func EnvFileFlags() string {
	return stringFlag([]string{"env"}, "path to .env file")
}

// stringFlag parses a single string flag (with aliases) out of os.Args.
// The last occurrence wins.
func stringFlag(names []string, usage string) string {
	var value string

	allowed := make([]string, 0, len(names))
	for _, n := range names {
		allowed = append(allowed, "-"+n)
	}
	args := FilterArgs(os.Args[1:], allowed)

	fs := flag.NewFlagSet(names[0], flag.ContinueOnError)
	for _, n := range names {
		fs.StringVar(&value, n, "", usage)
	}
	_ = fs.Parse(args)

	return value
}
