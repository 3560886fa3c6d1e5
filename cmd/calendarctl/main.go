// Command calendarctl holds operator helpers for the calendar service.
//
//	calendarctl hash-password
//
// prints an argon2id hash suitable for CALENDAR_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/example/calendar-manager/internal/application"
)

// readPassword is replaced in tests.
var readPassword = term.ReadPassword

var errUsage = errors.New("usage: calendarctl hash-password")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) != 1 || args[0] != "hash-password" {
		fmt.Fprintln(stderr, errUsage)
		return 2
	}

	password, err := promptPassword(stdin, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "failed to read password:", err)
		return 1
	}
	if password == "" {
		fmt.Fprintln(stderr, "password must not be empty")
		return 1
	}

	hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	if err != nil {
		fmt.Fprintln(stderr, "failed to hash password:", err)
		return 1
	}
	fmt.Fprintln(stdout, hash)
	return 0
}

// promptPassword reads without echo from a terminal, otherwise one line
// from stdin so the command also works in pipelines.
func promptPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
