// Package shared holds small error helpers used by more than one
// adapter.
package shared

import (
	"fmt"
	"strings"
)

// HTTPStatusError describes a non-2xx response from an artifact or
// probe request.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("server returned %d for %s", status, url)
}

// HTTPStatusErrorWithBody additionally carries a response body snippet
// for diagnostics. Callers bound the body before passing it in.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	snippet := strings.TrimSpace(body)
	if snippet == "" {
		return HTTPStatusError(status, url)
	}
	return fmt.Errorf("server returned %d for %s: %s", status, url, snippet)
}

// CommandError prefixes a failed command's error with its captured
// stderr so the detail survives into the installation record.
func CommandError(output []byte, err error) error {
	detail := strings.TrimSpace(string(output))
	if detail == "" {
		return err
	}
	return fmt.Errorf("%s: %w", detail, err)
}
