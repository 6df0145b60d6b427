package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// SpoolPollInterval is how often PollSpool checks the confirmation file.
const SpoolPollInterval = 200 * time.Millisecond

// spoolPath resolves the well-known confirmation spool file for requestID
// (§6: "${XDG_RUNTIME_DIR}/btwd-confirm-<request_id>").
func spoolPath(requestID string) string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "btwd-confirm-"+requestID)
}

// RunConfirmHelper invokes helperPath with {request_id, title, body} and
// does not wait for it: the helper is a long-lived notification-with-
// actions process whose eventual answer is observed via the spool file,
// not its exit status.
func RunConfirmHelper(helperPath string) ConfirmHelper {
	return func(requestID, title, body string) error {
		cmd := exec.Command(helperPath, requestID, title, body)
		cmd.Env = minimalEnv()
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("confirmation helper: start: %w", err)
		}
		go cmd.Wait()
		return nil
	}
}

// PollSpool polls requestID's spool file until it contains "yes" or "no",
// the deadline elapses, or ctx is cancelled. The spool file is removed
// once read.
func PollSpool(ctx context.Context, requestID string, deadline time.Time) (bool, error) {
	path := spoolPath(requestID)
	defer os.Remove(path)

	ticker := time.NewTicker(SpoolPollInterval)
	defer ticker.Stop()

	for {
		if raw, err := os.ReadFile(path); err == nil {
			switch string(raw) {
			case "yes":
				return true, nil
			case "no":
				return false, nil
			}
		}

		if time.Now().After(deadline) {
			return false, fmt.Errorf("confirmation timed out for request %s", requestID)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
