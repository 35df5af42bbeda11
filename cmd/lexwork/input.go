package main

import (
	"io"
	"os"
	"path/filepath"
)

// readInput reads path, or stdin when path is "-". It returns the URI the
// document is opened under.
func readInput(path string, stdin io.Reader) (uri, content string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", err
		}
		return "stdin", string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	return abs, string(data), nil
}
