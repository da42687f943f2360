package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

//nolint:gochecknoglobals
var (
	// isTerminal and readTerminalPassword are test seams for golang.org/x/term.
	isTerminal           = term.IsTerminal
	readTerminalPassword = term.ReadPassword
)

// readPassword reads the password without echo if stdin is a terminal, otherwise it
// reads one line. The trailing line break is removed; other whitespace is kept.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if file, ok := stdin.(*os.File); ok && isTerminal(int(file.Fd())) {
		fmt.Fprint(prompt, "Password: ")

		password, err := readTerminalPassword(int(file.Fd()))

		fmt.Fprintln(prompt)

		if err != nil {
			return "", fmt.Errorf("read terminal: %w", err)
		}

		return string(password), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read line: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
