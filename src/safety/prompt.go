package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options carries the confirmation flags shared by destructive commands.
type Options struct {
	// Yes answers every prompt with yes.
	Yes bool
}

// Confirm asks the user to confirm a destructive action.
// - If opts.Yes is true, it returns true without prompting.
// - Otherwise one line is read from in; "y" or "yes" in any case confirms.
// End of input counts as a refusal.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	if in == nil {
		return false, nil
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}
