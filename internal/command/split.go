package command

import "errors"

// ErrTooManyArgs is returned when a line splits into more than the allowed
// number of tokens.
var ErrTooManyArgs = errors.New("too many arguments")

// ErrNoLine is returned when the input buffer is nil.
var ErrNoLine = errors.New("no input line")

// ShellSplit splits line into at most maxArgs tokens, in place. Whitespace
// (space, tab, CR, LF) separates tokens outside quotes. Single and double
// quotes each toggle a literal mode; a quote of the other kind inside an
// active quote is ordinary content. Quote characters are removed by shifting
// the remaining bytes left, so the returned tokens alias the (rewritten)
// input buffer and are only valid while it is.
//
// There is no backslash escaping: a backslash is an ordinary byte.
func ShellSplit(line []byte, maxArgs int) ([][]byte, error) {
	if line == nil {
		return nil, ErrNoLine
	}

	var argv [][]byte
	n := len(line)
	p := 0
	start := 0
	inSQ := false // inside single quotes
	inDQ := false // inside double quotes
	inArg := false

	for p < n {
		c := line[p]
		isWS := c == ' ' || c == '\t' || c == '\r' || c == '\n'

		if isWS && !inSQ && !inDQ {
			if inArg {
				argv = append(argv, line[start:p])
				inArg = false
			}
			p++
			continue
		}

		if (c == '\'' && !inDQ) || (c == '"' && !inSQ) {
			if c == '\'' {
				inSQ = !inSQ
			} else {
				inDQ = !inDQ
			}
			// Remove the quote by shifting the tail left, then
			// re-examine the same position.
			copy(line[p:n-1], line[p+1:n])
			n--
			if !inArg {
				if len(argv) >= maxArgs {
					return nil, ErrTooManyArgs
				}
				start = p
				inArg = true
			}
			continue
		}

		if !inArg {
			if len(argv) >= maxArgs {
				return nil, ErrTooManyArgs
			}
			start = p
			inArg = true
		}
		p++
	}

	if inArg {
		argv = append(argv, line[start:n])
	}
	return argv, nil
}
