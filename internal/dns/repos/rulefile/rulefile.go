package rulefile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

const filePerm = 0o644

// Write stores one `||name^` line per name at path. Lines are separated by
// "\n" with no trailing newline; an empty list yields an empty file. The
// content goes to a temporary file in the same directory first and is
// renamed over path, so readers never see a partial file.
func Write(path string, names []string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for i, name := range names {
		if i > 0 {
			if err = w.WriteByte('\n'); err != nil {
				return fmt.Errorf("write rules: %w", err)
			}
		}
		if _, err = w.WriteString(domain.FormatRule(name)); err != nil {
			return fmt.Errorf("write rules: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush rules: %w", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename rules file: %w", err)
	}
	return nil
}
