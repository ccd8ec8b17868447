package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/todo-keeper/internal/client"
	"github.com/and161185/todo-keeper/internal/convert"
	"github.com/and161185/todo-keeper/internal/health"
	"github.com/and161185/todo-keeper/internal/repository/memory"
	httpserver "github.com/and161185/todo-keeper/internal/server/http"
	"github.com/and161185/todo-keeper/internal/service"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "todo")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	if err := saveToken("tok", "alice", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tf, err := loadToken()
	if err != nil || tf.AccessToken != "tok" || tf.Username != "alice" {
		t.Fatalf("loadToken: %+v %v", tf, err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", st, err)
	}
	if err := saveToken("tok2", "alice", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
}

func Test_tokenExpiry(t *testing.T) {
	t.Parallel()

	tok, err := service.NewTokenService([]byte("k")).Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := tokenExpiry(tok.AccessToken); !got.Equal(tok.ExpiresAt.Truncate(time.Second)) {
		t.Fatalf("expiry = %v, want %v", got, tok.ExpiresAt)
	}
	if got := tokenExpiry("garbage"); got.Before(time.Now()) {
		t.Fatalf("fallback expiry in the past: %v", got)
	}
}

func Test_readAll_File(t *testing.T) {
	t.Parallel()

	tmp := filepath.Join(t.TempDir(), "f.txt")
	_ = os.WriteFile(tmp, []byte("hello"), 0o600)
	b, err := readAll(tmp)
	if err != nil || string(b) != "hello" {
		t.Fatalf("readAll(file): %q %v", b, err)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printJSON(&buf, map[string]any{"a": 1})

	var m map[string]any
	if json.Unmarshal(buf.Bytes(), &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_loadTLS_Variants(t *testing.T) {
	t.Parallel()

	tc, err := loadTLS("", true)
	if err != nil || tc == nil || !tc.InsecureSkipVerify {
		t.Fatalf("insecure: %v %v", tc, err)
	}

	tc, err = loadTLS("", false)
	if err != nil || tc != nil {
		t.Fatalf("default tls: %v %v", tc, err)
	}

	tmp := filepath.Join(t.TempDir(), "bad.pem")
	_ = os.WriteFile(tmp, []byte("not pem"), 0o600)
	tc, err = loadTLS(tmp, false)
	if err == nil || tc != nil {
		t.Fatalf("bad CA should error, got %v err=%v", tc, err)
	}
}

func Test_run_Usage(t *testing.T) {
	t.Parallel()

	if err := run(context.Background(), nil, io.Discard); err != errUsage {
		t.Fatalf("no args: %v", err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), []string{"version"}, &out); err != nil || !strings.HasPrefix(out.String(), "todo ") {
		t.Fatalf("version: %q %v", out.String(), err)
	}
}

func Test_run_Flow(t *testing.T) {
	_ = withTmpConfig(t)

	store := memory.New()
	tokens := service.NewTokenService([]byte("k"))
	auth := service.NewAuthService(service.NewCredentialStore(store, time.Second), tokens, nil)
	h := httpserver.NewHandler(auth, service.NewTodoService(store, time.Second), tokens, health.NewState(), zaptest.NewLogger(t))
	srv := httptest.NewServer(httpserver.New(h, httpserver.CORSOptions{}))
	defer srv.Close()

	ctx := context.Background()
	cmd := func(args ...string) (string, error) {
		var out bytes.Buffer
		err := run(ctx, append([]string{"-addr", srv.URL}, args...), &out)
		return out.String(), err
	}

	if _, err := cmd("list"); err == nil {
		t.Fatalf("list without login must fail")
	}
	if _, err := cmd("signup", "-u", "alice", "-p", "pw"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := cmd("add", "-d", "milk", "-due", "2025-01-01"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := cmd("add", "-d", "bread", "-due", "2025-01-02"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := cmd("done", "-id", "2"); err != nil {
		t.Fatalf("done: %v", err)
	}
	if _, err := cmd("edit", "-id", "1", "-d", "oat milk", "-done=false"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	out, err := cmd("list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []convert.Todo
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list output %q: %v", out, err)
	}
	if len(list) != 2 || list[0].Description != "oat milk" || list[0].Done || !list[1].Done {
		t.Fatalf("unexpected list %+v", list)
	}

	if _, err := cmd("rm", "-id", "1"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	_, err = cmd("get", "-id", "1")
	if !client.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("get removed: %v", err)
	}
	if _, err := cmd("get", "-id", "zero"); err == nil {
		t.Fatalf("bad id accepted")
	}

	if _, err := cmd("login", "-u", "alice", "-p", "nope"); !client.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("bad login: %v", err)
	}
	if _, err := cmd("login", "-u", "alice", "-p", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
}
