// Command todo is a CLI client for the todo service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/todo-keeper/internal/client"
	"github.com/and161185/todo-keeper/internal/convert"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	Username    string    `json:"username"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "todo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "todo")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok, username string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, Username: username, ExpiresAt: exp})
}

func loadToken() (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return tokenFile{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	if tf.AccessToken == "" || tf.Username == "" || time.Now().After(tf.ExpiresAt) {
		return tokenFile{}, errors.New("no valid token (login required)")
	}
	return tf, nil
}

// tokenExpiry reads exp from the JWT without verifying it; the server does that.
func tokenExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, _ = jwt.NewParser().ParseUnverified(tok, &claims)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(time.Hour)
}

// ---- http ----

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}

func newClient(addr, caPath string, insecure bool) (*client.Client, error) {
	tc, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Timeout: 30 * time.Second}
	if tc != nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = tc
		hc.Transport = tr
	}
	return client.New(addr, hc)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q", s)
	}
	return id, nil
}

const usageText = `todo CLI
Usage:
  todo -addr URL [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  health
  signup     -u <username> -p <password>           (saves token)
  login      -u <username> -p <password>           (saves token)
  list
  get        -id <n>
  add        -d <text | -> -due <YYYY-MM-DD> [-done]
  edit       -id <n> [-d <text | ->] [-due <YYYY-MM-DD>] [-done=true|false]
  done       -id <n>
  rm         -id <n>
`

var errUsage = errors.New("usage")

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	default:
		fail(err)
	}
}

// run dispatches a subcommand; output goes to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	gfs := flag.NewFlagSet("todo", flag.ContinueOnError)
	gfs.SetOutput(io.Discard)
	addr := gfs.String("addr", envOr("TODO_SERVER", "http://localhost:8080"), "server base URL")
	caPath := gfs.String("cacert", "", "CA cert (PEM)")
	insecure := gfs.Bool("insecure", false, "skip cert verify (dev)")
	if err := gfs.Parse(args); err != nil || gfs.NArg() < 1 {
		return errUsage
	}
	cmd, rest := gfs.Arg(0), gfs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(out, "todo %s (%s)\n", version, buildDate)
		return nil
	}

	cli, err := newClient(*addr, *caPath, *insecure)
	if err != nil {
		return err
	}

	switch cmd {
	case "health":
		h, err := cli.Health(ctx)
		if err != nil {
			return err
		}
		printJSON(out, h)
		return nil
	case "signup", "login":
		return cmdCredentials(ctx, cli, cmd, rest, out)
	}

	tf, err := loadToken()
	if err != nil {
		return err
	}
	cli.Token = tf.AccessToken
	user := tf.Username

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "list":
		todos, err := cli.List(ctx, user)
		if err != nil {
			return err
		}
		printJSON(out, todos)

	case "get":
		id := fs.String("id", "", "todo id")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		n, err := parseID(*id)
		if err != nil {
			return err
		}
		t, err := cli.Get(ctx, user, n)
		if err != nil {
			return err
		}
		printJSON(out, t)

	case "add":
		desc := fs.String("d", "", "description ('-'=stdin)")
		due := fs.String("due", "", "target date YYYY-MM-DD")
		done := fs.Bool("done", false, "already done")
		if err := fs.Parse(rest); err != nil || *desc == "" || *due == "" {
			return errUsage
		}
		text, err := description(*desc)
		if err != nil {
			return err
		}
		t, err := cli.Create(ctx, user, convert.CreateTodo{Description: text, TargetDate: *due, Done: *done})
		if err != nil {
			return err
		}
		printJSON(out, t)

	case "edit":
		id := fs.String("id", "", "todo id")
		desc := fs.String("d", "", "description ('-'=stdin)")
		due := fs.String("due", "", "target date YYYY-MM-DD")
		done := fs.String("done", "", "true|false")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		n, err := parseID(*id)
		if err != nil {
			return err
		}
		var in convert.UpdateTodo
		if *desc != "" {
			text, err := description(*desc)
			if err != nil {
				return err
			}
			in.Description = &text
		}
		if *due != "" {
			in.TargetDate = due
		}
		if *done != "" {
			b, err := strconv.ParseBool(*done)
			if err != nil {
				return fmt.Errorf("bad -done %q", *done)
			}
			in.Done = &b
		}
		t, err := cli.Update(ctx, user, n, in)
		if err != nil {
			return err
		}
		printJSON(out, t)

	case "done":
		id := fs.String("id", "", "todo id")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		n, err := parseID(*id)
		if err != nil {
			return err
		}
		yes := true
		t, err := cli.Update(ctx, user, n, convert.UpdateTodo{Done: &yes})
		if err != nil {
			return err
		}
		printJSON(out, t)

	case "rm":
		id := fs.String("id", "", "todo id")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		n, err := parseID(*id)
		if err != nil {
			return err
		}
		if err := cli.Delete(ctx, user, n); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")

	default:
		return errUsage
	}
	return nil
}

func cmdCredentials(ctx context.Context, cli *client.Client, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil || *u == "" || *p == "" {
		return errUsage
	}

	var (
		resp convert.AuthResponse
		err  error
	)
	if cmd == "signup" {
		resp, err = cli.Signup(ctx, *u, *p)
	} else {
		resp, err = cli.Authenticate(ctx, *u, *p)
	}
	if err != nil {
		return err
	}
	if err := saveToken(resp.Token, resp.Username, tokenExpiry(resp.Token)); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func description(v string) (string, error) {
	if v != "-" {
		return v, nil
	}
	b, err := readAll("-")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	var ae *client.APIError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "server error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
