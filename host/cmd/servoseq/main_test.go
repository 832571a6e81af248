package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"servoseq/core"
	"servoseq/sequencer/config"

	"github.com/edaniels/golog"
)

// withConfig points the -config flag at a file holding data for one test
func withConfig(t *testing.T, data string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servoseq.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	old := *configPath
	*configPath = path
	t.Cleanup(func() { *configPath = old })
}

func TestRunBadConfigReturnsError(t *testing.T) {
	withConfig(t, "active_channels: 40\n")
	err := run(golog.NewDevelopmentLogger("test"))
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("run err = %v, want ErrInvalid", err)
	}
}

func TestRunMissingBusReturnsError(t *testing.T) {
	withConfig(t, "i2c_bus: no-such-bus\nserial:\n  device: /dev/null\n")
	err := run(golog.NewDevelopmentLogger("test"))
	if !errors.Is(err, core.ErrHardwareInit) {
		t.Errorf("run err = %v, want ErrHardwareInit", err)
	}
}
