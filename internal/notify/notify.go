package notify

import (
	"os/exec"
	"strconv"
	"strings"
)

// sanitizePassiveBody drops quote-style characters some notification
// daemons (e.g. swaync) turn into unwanted copy actions. Display only;
// never touches the spoken/business-logic text.
func sanitizePassiveBody(body string) string {
	var b strings.Builder
	for _, ch := range body {
		switch ch {
		case '"', '\'', '“', '”', '‘', '’', '`':
			continue
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// Listening starts the overlay and shows a transient "Listening…" toast
// (§4.I Idle→Capturing UI feedback, §6 ui.listening_notification).
func Listening(enabled bool, timeoutMs int) {
	if !enabled {
		return
	}
	OverlayEnable()

	go func() {
		_ = exec.Command("notify-send", "btwd", "Listening…", "-t", strconv.Itoa(timeoutMs)).Run()
	}()
}

// Text shows a passive, action-less notification (e.g. the transcript).
func Text(enabled bool, timeoutMs int, title, body string) {
	if !enabled {
		return
	}
	body = sanitizePassiveBody(body)

	go func() {
		_ = exec.Command("notify-send",
			title, body,
			"-h", "string:x-canonical-private-synchronous:btwd-info",
			"-h", "string:category:im.received",
			"-h", "int:transient:1",
			"-t", strconv.Itoa(timeoutMs),
		).Run()
	}()
}

// Answer stops the overlay and shows the Answer Path's display text
// (§4.H step 5, §4.I Answering→Idle UI feedback).
func Answer(enabled bool, timeoutMs int, title, body string) {
	if !enabled {
		return
	}
	OverlayDisable()
	body = sanitizePassiveBody(body)

	go func() {
		_ = exec.Command("notify-send", title, body, "-t", strconv.Itoa(timeoutMs)).Run()
	}()
}

// ConfirmActions stops the overlay and invokes the external confirmation
// helper contract (§6 Confirmation helper contract) via the executor
// package's RunConfirmHelper; ConfirmActions only handles the UI-visible
// side: showing the request and clearing the overlay.
func ConfirmActions(enabled bool, requestID, title, body string) {
	if !enabled {
		return
	}
	OverlayDisable()
}
