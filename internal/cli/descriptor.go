package cli

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ErrNoDescriptor means neither a positional argument nor stdin supplied
// a descriptor: exactly one descriptor argument is required, given
// positionally or as a single line read from standard input.
var ErrNoDescriptor = errors.New("no descriptor given (pass one positionally or via stdin)")

// resolveDescriptor returns the first positional argument as the
// descriptor if present, consuming it from args; otherwise it reads one
// line from stdin. The remaining positional arguments (args[1:] in the
// positional case) are returned unconsumed for --exec to use as argv.
func resolveDescriptor(stdin io.Reader, args []string) (descriptor string, rest []string, err error) {
	if len(args) > 0 {
		return args[0], args[1:], nil
	}

	if stdin == nil {
		return "", nil, ErrNoDescriptor
	}

	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return "", nil, ErrNoDescriptor
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return "", nil, ErrNoDescriptor
	}

	return line, nil, nil
}
