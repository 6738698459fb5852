package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath_TildeExpandsToHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got := expandPath("~/music")
	want := filepath.Join(home, "music")
	if got != want {
		t.Errorf("expandPath(~/music) = %q, want %q", got, want)
	}
}

func TestExpandPath_LeavesAbsolutePathAlone(t *testing.T) {
	if got := expandPath("/srv/music"); got != "/srv/music" {
		t.Errorf("expandPath(/srv/music) = %q, want unchanged", got)
	}
}

func TestGatekeeperTimeouts_ConvertMillisecondsToDuration(t *testing.T) {
	g := Gatekeeper{AcquireReadTimeoutMs: 5000, AcquireWriteTimeoutMs: 30000}
	if g.AcquireReadTimeout().Seconds() != 5 {
		t.Errorf("expected 5s read timeout, got %v", g.AcquireReadTimeout())
	}
	if g.AcquireWriteTimeout().Seconds() != 30 {
		t.Errorf("expected 30s write timeout, got %v", g.AcquireWriteTimeout())
	}
}
