// Package tunnel exposes the studio on a public URL by running an
// operator-supplied tunnel command (cloudflared, ngrok, or similar) as a
// child process and scraping the public URL from its output.
package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"time"

	"github.com/book-expert/logger"
	shellwords "github.com/mattn/go-shellwords"
)

// Static errors.
var (
	ErrNoCommand  = errors.New("no tunnel command configured")
	ErrNoURL      = errors.New("tunnel produced no public URL")
	ErrURLTimeout = errors.New("timed out waiting for tunnel URL")
)

// urlPattern matches the first https URL the tunnel prints.
var urlPattern = regexp.MustCompile(`https://[^\s"']+`)

// Tunnel is a running tunnel child process.
type Tunnel struct {
	cmd   *exec.Cmd
	log   *logger.Logger
	urlCh chan string
}

// Start parses and launches the tunnel command. The returned tunnel keeps
// running until Stop is called or the context is cancelled.
func Start(ctx context.Context, command string, log *logger.Logger) (*Tunnel, error) {
	if command == "" {
		return nil, ErrNoCommand
	}

	parser := shellwords.NewParser()

	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tunnel command: %w", err)
	}

	if len(args) == 0 {
		return nil, ErrNoCommand
	}

	// #nosec G204 -- the command comes from the operator's own config
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open tunnel stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open tunnel stderr: %w", err)
	}

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start tunnel command: %w", err)
	}

	tun := &Tunnel{
		cmd:   cmd,
		log:   log,
		urlCh: make(chan string, 1),
	}

	go tun.scanOutput(stdout)
	go tun.scanOutput(stderr)

	log.Info("Tunnel command started: %s", args[0])

	return tun, nil
}

// PublicURL waits for the tunnel to print its public URL.
func (t *Tunnel) PublicURL(timeout time.Duration) (string, error) {
	select {
	case url, ok := <-t.urlCh:
		if !ok || url == "" {
			return "", ErrNoURL
		}

		return url, nil
	case <-time.After(timeout):
		return "", ErrURLTimeout
	}
}

// Stop terminates the tunnel process and reaps it.
func (t *Tunnel) Stop() {
	if t == nil || t.cmd == nil || t.cmd.Process == nil {
		return
	}

	killErr := t.cmd.Process.Kill()
	if killErr != nil {
		t.log.Warn("Failed to kill tunnel process: %v", killErr)
	}

	_ = t.cmd.Wait()
}

// scanOutput reads tunnel output line by line and captures the first public
// URL it sees.
func (t *Tunnel) scanOutput(reader io.Reader) {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()

		url := urlPattern.FindString(line)
		if url == "" {
			continue
		}

		select {
		case t.urlCh <- url:
			t.log.System("Public URL: %s", url)
		default:
		}
	}
}
