package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: 5 * time.Second}
	if err := callAdmin(cl, http.MethodGet, adminURL(*baseURL, "state"), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// postCmd triggers /admin/v1/<action> (snapshot or reset).
func postCmd(action string, args []string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: 10 * time.Second}
	if err := callAdmin(cl, http.MethodPost, adminURL(*baseURL, action), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func adminURL(base, action string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/admin/v1/" + action
}

// callAdmin copies the response body to out and fails on a non-2xx status.
func callAdmin(cl *http.Client, method, u string, out io.Writer) error {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(out, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, u, resp.Status)
	}
	return nil
}
