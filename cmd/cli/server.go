package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	serverBinary       = "yt-sync-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// isServerReady reports whether the server answers /ready with 200
func isServerReady() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(serverURL + "/ready")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findServerBinary looks next to the CLI, then in $YTSYNC_SERVER_BIN, PATH
// and the usual install locations
func findServerBinary() (string, error) {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), serverBinary))
	}
	if env := os.Getenv("YTSYNC_SERVER_BIN"); env != "" {
		candidates = append(candidates, env)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if p, err := exec.LookPath(serverBinary); err == nil {
		return p, nil
	}

	home, _ := os.UserHomeDir()
	for _, p := range []string{
		filepath.Join("/usr/local/bin", serverBinary),
		filepath.Join(home, "go", "bin", serverBinary),
		filepath.Join(home, ".local", "bin", serverBinary),
	} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s binary not found", serverBinary)
}

// launchServer runs the server launcher, which detaches itself and exits.
// The port is taken from --server so both sides agree.
func launchServer() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	var args []string
	if u, err := url.Parse(serverURL); err == nil && u.Port() != "" {
		args = append(args, "-port", u.Port())
	}

	out, err := exec.Command(serverPath, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", serverBinary, err, out)
	}
	return nil
}

func waitForServerReady() error {
	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if isServerReady() {
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not become ready within %v", serverStartTimeout)
}

// ensureServerRunning starts the server when nothing answers on --server
func ensureServerRunning() error {
	if isServerReady() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	if err := launchServer(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if err := waitForServerReady(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Server started")
	return nil
}
