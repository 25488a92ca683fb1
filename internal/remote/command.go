package remote

import (
	"regexp"
	"strings"
)

// safeWord matches argv words that need no quoting on a POSIX shell.
var safeWord = regexp.MustCompile(`^[\w@%+=:,./^-]+$`)

// Quote wraps value in single quotes with POSIX-safe escaping, so collected
// parameters can never break out of the command they are spliced into.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// Command builds a remote shell command from an argv, quoting every argument
// that needs it. Use it for plain invocations; commands that need shell
// operators are written out explicitly with Quote applied to each
// interpolated value.
func Command(args ...string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		if safeWord.MatchString(arg) {
			quoted = append(quoted, arg)
		} else {
			quoted = append(quoted, Quote(arg))
		}
	}
	return strings.Join(quoted, " ")
}
