// Command adduser registers a user directly in the configured store.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"minhasfinancas/internal/backend"
	"minhasfinancas/internal/cli"
	"minhasfinancas/internal/config"
	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
)

func main() {
	cli.LoadEnvFile()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 1 on failure and 2 on
// usage errors.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	nome := fs.String("nome", "", "user name")
	email := fs.String("email", "", "user email (required)")
	senha := fs.String("senha", "", "password; read from stdin when omitted")
	backendType := fs.String("backend", cfg.DataBackend, "data backend: "+strings.Join(backend.GetBackendTypeStrings(), ", "))
	dbPath := fs.String("db", cfg.SQLiteDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stderr, "adduser: -email is required")
		fs.Usage()
		return 2
	}

	password := *senha
	if password == "" {
		var err error
		password, err = readPassword(stdin, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "adduser: read password: %v\n", err)
			return 1
		}
	}

	logger := log.New(log.Config{Output: stderr, Level: log.LevelFromString(cfg.LogLevel)})

	cfg.DataBackend = *backendType
	cfg.SQLiteDBPath = *dbPath
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 2
	}
	if backendCfg.Type == backend.MemoryBackend {
		fmt.Fprintln(stderr, "adduser: the memory backend does not persist users")
		return 2
	}
	// Registration from the command line does not announce anything.
	backendCfg.AMQPURL = ""

	ctx := context.Background()
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			fmt.Fprintf(stderr, "adduser: cleanup: %v\n", err)
		}
	}()

	u, err := result.Users.Register(ctx, core.Usuario{Nome: *nome, Email: *email, Senha: password})
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "created user %d <%s>\n", u.ID, u.Email)
	return 0
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(stdin io.Reader, stderr io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stderr, "Senha: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
