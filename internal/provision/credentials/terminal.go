package credentials

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal prompts the operator interactively. The password is read without
// echo and must be entered twice; an empty password is accepted and means
// "prompt at connect time".
type Terminal struct {
	// Login, when non-empty, is used as-is and only the password is asked.
	Login string
}

// Credentials implements Provider.
func (t *Terminal) Credentials(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	login := t.Login
	if login == "" {
		fmt.Fprint(os.Stderr, "Enter your PIA username: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read username: %w", err)
		}
		login = strings.TrimSpace(line)
	}

	password, err := readPasswordTwice()
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{Login: login, Password: password}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func readPasswordTwice() (string, error) {
	for {
		fmt.Fprint(os.Stderr, "Enter your password (empty to be asked at connect time): ")
		first, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if len(first) == 0 {
			return "", nil
		}

		fmt.Fprint(os.Stderr, "Please re-enter password: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if string(first) == string(second) {
			return string(first), nil
		}
		fmt.Fprintln(os.Stderr, "Passwords do not match. Please try again.")
	}
}
