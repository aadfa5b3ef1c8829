package database

import (
	"bufio"
	"errors"
	"io"
	"regexp"
)

// sandboxMarker matches the MariaDB sandbox-mode line
// (/*M!999999\- enable the sandbox mode */) that older servers reject.
var sandboxMarker = regexp.MustCompile(`999999.*sandbox`)

// StripSandbox drops the first line of r when it is the sandbox marker.
// Only the first line is considered.
func StripSandbox(r io.Reader) io.Reader {
	return &sandboxFilter{br: bufio.NewReader(r)}
}

type sandboxFilter struct {
	br      *bufio.Reader
	checked bool
	pending []byte
}

func (f *sandboxFilter) Read(p []byte) (int, error) {
	if !f.checked {
		f.checked = true
		line, err := f.br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if !sandboxMarker.MatchString(line) {
			f.pending = []byte(line)
		}
	}
	if len(f.pending) > 0 {
		n := copy(p, f.pending)
		f.pending = f.pending[n:]
		return n, nil
	}
	return f.br.Read(p)
}
