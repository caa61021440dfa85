package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// stateCmd prints a live chat view from a running server's loopback admin
// endpoint.
func stateCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	chat := fs.String("chat", "", "chat id (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	chatID, err := parseChatID(*chat)
	if err != nil {
		return err
	}
	u := adminURL(*baseURL, "/admin/v1/chats/"+strconv.FormatInt(chatID, 10))
	req, _ := http.NewRequest(http.MethodGet, u, nil)
	return doAdmin(req, 5*time.Second, out)
}

// snapshotCmd asks a running server to write a snapshot of its store.
func snapshotCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	req, _ := http.NewRequest(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot"), nil)
	return doAdmin(req, 30*time.Second, out)
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func doAdmin(req *http.Request, timeout time.Duration, out io.Writer) error {
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(out, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	return nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad chat id %q", errUsage, s)
	}
	return id, nil
}
