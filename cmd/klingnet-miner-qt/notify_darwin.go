//go:build darwin

package main

import (
	"os/exec"
	"strings"
)

func sendOSNotification(title, body string) {
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	script := `display notification "` + esc.Replace(body) + `" with title "Klingnet Miner" subtitle "` + esc.Replace(title) + `"`
	_ = exec.Command("osascript", "-e", script).Start()
}
