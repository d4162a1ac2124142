package logpoll

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/logger"
)

// Helper copies the device code to the clipboard and opens the login page
// as soon as the code shows up. It runs on its own goroutine, only reads,
// and is never waited on: cancelling the context passed to Start ends it.
// Every failure is logged and otherwise ignored.
type Helper struct {
	Source   LogSource
	Budget   time.Duration
	Interval time.Duration

	// Clipboard and Browser default to the system clipboard and browser.
	// Set Disable* to skip either.
	Clipboard      func(string) error
	Browser        func(string) error
	DisableCopy    bool
	DisableBrowser bool

	Poller Poller
	Log    logger.Logger
}

// Start launches the helper. The returned channel is closed when the
// goroutine exits; callers are not expected to wait on it.
func (h *Helper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	log := h.Log
	if log == nil {
		log = logger.Noop()
	}
	copyFn := h.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	openFn := h.Browser
	if openFn == nil {
		openFn = exec.OpenURL
	}

	go func() {
		defer close(done)

		match, err := h.Poller.PollFor(ctx, DeviceCodeMatcher{}, h.Budget, h.Interval, h.Source)
		if err != nil {
			log.Debug("device-code helper stopped: %v", err)
			return
		}
		if ctx.Err() != nil {
			return
		}

		code := match.Auth.DeviceCode
		if !h.DisableCopy {
			if err := copyFn(code); err != nil {
				log.Debug("clipboard unavailable: %v", err)
			} else {
				log.Info("copied device code %s to the clipboard", code)
			}
		}
		if !h.DisableBrowser && match.Auth.LoginURL != "" {
			if err := openFn(match.Auth.LoginURL); err != nil {
				log.Debug("couldn't open %s: %v", match.Auth.LoginURL, err)
			}
		}
	}()

	return done
}
