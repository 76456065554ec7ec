package commenter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// render prints content with syntax highlighting picked from path's name.
func (c *Commenter) render(path, content string) error {
	if _, err := fmt.Fprintf(c.Output, "==> %s <==\n", path); err != nil {
		return err
	}
	if err := quick.Highlight(c.Output, content, filepath.Base(path), c.Formatter, c.Theme); err != nil {
		return err
	}
	if !strings.HasSuffix(content, "\n") {
		_, err := fmt.Fprintln(c.Output)
		return err
	}
	return nil
}
