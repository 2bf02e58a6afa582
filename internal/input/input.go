// Package input bounds and checks what the command line reads from the
// user: saved pages, prompt files, snapshots and page URLs.
package input

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// MaxFile bounds a page, prompt or snapshot read from disk or stdin.
const MaxFile = 16 << 20

// ErrTooLarge is returned when a read exceeds its bound.
var ErrTooLarge = errors.New("input: too large")

// ReadAll reads r to the end, failing once more than max bytes arrive.
func ReadAll(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

// ReadFile reads path within MaxFile. "-" reads stdin.
func ReadFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return ReadAll(stdin, MaxFile)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := ReadAll(f, MaxFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// PageURL checks that raw is an absolute http(s) URL with a host and
// returns it normalised. Site patterns are matched against this form.
func PageURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("input: page url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("input: page url %q: scheme must be http or https", raw)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("input: page url %q: no host", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
