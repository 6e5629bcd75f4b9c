package snapshot

import (
	"os/exec"
)

func getCmdPath(cmd string) (string, error) {
	return exec.LookPath(cmd)
}

func cmdExists(cmd string) bool {
	_, err := getCmdPath(cmd)

	return err == nil
}
