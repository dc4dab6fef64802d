// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	dataDir := strings.TrimSpace(os.Getenv("DATA_DIR"))
	smtpServer := strings.TrimSpace(os.Getenv("SMTP_SERVER"))
	mailTo := strings.TrimSpace(os.Getenv("MAIL_TO"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK"))
	cron := strings.TrimSpace(os.Getenv("POLL_CRON"))
	interval := strings.TrimSpace(os.Getenv("POLL_INTERVAL_SEC"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (admin routes will 403).")
	}
	if pub == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("ADDR is empty; default in your app may be used.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	if db != "" {
		ok("DATABASE_URL present — items persist to Postgres")
	} else if dataDir != "" {
		ok("DATA_DIR=" + dataDir + " — items persist to JSON files")
	} else {
		warn("DATABASE_URL and DATA_DIR both empty — default data dir will be used.")
	}

	if smtpServer == "" || mailTo == "" {
		warn("SMTP_SERVER or MAIL_TO empty — mail notifications disabled.")
	} else {
		ok("mail notifications: " + mailTo + " via " + smtpServer)
	}
	if slack == "" {
		warn("SLACK_WEBHOOK empty — Slack notifications disabled.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	if cron != "" {
		ok("POLL_CRON=" + cron + " (overrides POLL_INTERVAL_SEC)")
	} else if interval != "" {
		ok("POLL_INTERVAL_SEC=" + interval)
	} else {
		warn("no poll schedule set — hourly default applies.")
	}

	ok("preflight passed")
}
