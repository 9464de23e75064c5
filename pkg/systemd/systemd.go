// Package systemd integrates the process with the systemd service manager:
// readiness notification and watchdog keepalive via the sd_notify protocol.
// Every call is a no-op outside a systemd unit.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/Szchiji/lunbo/pkg/logx"
)

// NotifyReady reports readiness and, when the unit has WatchdogSec set,
// starts a goroutine feeding the watchdog at half the configured interval
// until ctx is cancelled.
func NotifyReady(ctx context.Context, log logx.Logger) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify unavailable", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

// NotifyStopping tells the service manager shutdown has begun, extending
// the stop timeout grace for the in-flight drain.
func NotifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
