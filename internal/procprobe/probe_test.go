package procprobe_test

import (
	"os"
	"os/exec"
	"testing"

	"github.com/waitlock/waitlock/internal/procprobe"
)

func TestUnix_Exists_CurrentProcessIsAlive(t *testing.T) {
	t.Parallel()

	p := procprobe.New()

	if !p.Exists(int32(os.Getpid())) {
		t.Fatalf("Exists(self)=false, want true")
	}
}

func TestUnix_Exists_NonPositivePIDIsFalse(t *testing.T) {
	t.Parallel()

	p := procprobe.New()

	for _, pid := range []int32{0, -1, -100} {
		if p.Exists(pid) {
			t.Errorf("Exists(%d)=true, want false", pid)
		}
	}
}

func TestUnix_Exists_DeadPIDIsFalse(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("no /bin/true available: %v", err)
	}

	p := procprobe.New()

	if p.Exists(int32(cmd.Process.Pid)) {
		t.Errorf("Exists(reaped child pid)=true, want false")
	}
}

func TestUnix_Cmdline_SelfIsNotEmpty(t *testing.T) {
	t.Parallel()

	p := procprobe.New()

	got := p.Cmdline(int32(os.Getpid()))
	if got == "" {
		t.Fatalf("Cmdline(self) is empty")
	}
}
