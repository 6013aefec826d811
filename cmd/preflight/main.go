// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/statuspulse/statuspulse/internal/config"
)

// Preflight validates the environment before a deploy flips traffic over.
// It never touches the network; connectivity is the daemons' own problem.
func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		fail(err.Error())
	}

	ok("region=" + cfg.Region)
	ok("queue stream=" + cfg.Queue.Stream)
	ok("redis addr=" + cfg.Redis.Addr)

	if cfg.Database.URL == "" {
		warn("database.url empty; processes will fall back to in-memory stores (local runs only).")
	} else {
		ok("database.url present")
	}

	if _, err := time.LoadLocation(cfg.Aggregate.Timezone); err != nil {
		fail("aggregate.timezone invalid: " + err.Error())
	}
	ok("aggregate timezone=" + cfg.Aggregate.Timezone)

	if cfg.AutoHeal.MinIdle < cfg.Queue.ClaimBlock {
		warn("auto_heal.min_idle is below queue.claim_block; entries may be reclaimed while a worker is still on them.")
	}
	if cfg.Watchdog.CriticalIdle < cfg.AutoHeal.MinIdle {
		warn("watchdog.critical_idle below auto_heal.min_idle; backlog alarms will fire before auto-heal gets a chance.")
	}

	if cfg.Alert.SlackWebhook == "" {
		warn("alert.slack_webhook empty; state-change alerts are disabled.")
	} else {
		ok("slack webhook present")
	}

	ok("preflight passed")
}
