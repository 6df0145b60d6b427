package notify

import (
	"os/exec"
	"sync"
)

// overlayChild is the singleton OSD overlay process, started while btwd is
// listening and killed once an answer or command result is shown.
var overlayMu sync.Mutex
var overlayChild *exec.Cmd

// OverlayEnable starts the OSD overlay process if it is not already
// running. Failures are swallowed: the overlay is cosmetic, never load
// bearing.
func OverlayEnable() {
	overlayMu.Lock()
	defer overlayMu.Unlock()

	if overlayChild != nil {
		return
	}

	cmd := exec.Command("overlay", "--enable")
	if err := cmd.Start(); err == nil {
		overlayChild = cmd
	}
}

// OverlayDisable kills the running overlay process, if any.
func OverlayDisable() {
	overlayMu.Lock()
	defer overlayMu.Unlock()

	if overlayChild == nil {
		return
	}
	_ = overlayChild.Process.Kill()
	overlayChild = nil
}
