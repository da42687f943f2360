// Command kbchatctl registers and verifies chat users against the credential store.
//
// Usage:
//
//	kbchatctl register <username>
//	kbchatctl verify <username>
//
// The password is read without echo from the terminal, or as one line from stdin when
// stdin is not a terminal. Exit status is 0 on success, 1 if the username is taken or
// the credentials do not match, and 2 on usage or storage errors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/kbchat/internal/infra/config"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	"github.com/mkrupp/kbchat/internal/repo/user"
	"github.com/mkrupp/kbchat/internal/svc/credsvc"
)

const (
	appName = "kbchat"
	svcName = "ctl"
)

const (
	exitOK    = 0
	exitFalse = 1
	exitError = 2
)

type Config struct {
	config.EnvConfig

	Log   logging.LoggerConfig     `envPrefix:"LOG_"`
	User  user.RepositoryConfig    `envPrefix:"USER_"`
	Creds credsvc.CredentialConfig `envPrefix:"CREDS_"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) != 2 || (args[0] != "register" && args[0] != "verify") || args[1] == "" {
		fmt.Fprintln(stderr, "usage: kbchatctl register|verify <username>")

		return exitError
	}

	command, username := args[0], args[1]

	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return exitError
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return exitError
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	password, err := readPassword(stdin, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error: read password:", err)

		return exitError
	}

	store, err := credsvc.NewCredentialStore(user.Factory(cfg.User), cfg.Creds, nil)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return exitError
	}
	defer store.Close()

	if err := store.Initialize(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return exitError
	}

	var ok bool

	switch command {
	case "register":
		ok, err = store.Register(ctx, username, password)
	case "verify":
		ok, err = store.Verify(ctx, username, password)
	}

	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return exitError
	}

	fmt.Fprintln(stdout, outcome(command, ok))

	if !ok {
		return exitFalse
	}

	return exitOK
}

func outcome(command string, ok bool) string {
	switch {
	case command == "register" && ok:
		return "user created"
	case command == "register":
		return "username already exists"
	case ok:
		return "credentials valid"
	default:
		return "invalid username or password"
	}
}
