package terminal

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	spinner := NewSpinner(&out, "working")
	spinner.interval = time.Millisecond
	spinner.Start()
	spinner.Start()

	spinner.Println("round 1 answered")
	spinner.UpdateMessage("round 2")
	time.Sleep(20 * time.Millisecond)
	spinner.Stop("finished")
	spinner.Stop("ignored")

	got := out.String()
	for _, want := range []string{"round 1 answered\n", "round 2", "finished\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
	if strings.Contains(got, "ignored") {
		t.Error("second Stop wrote output")
	}
}

func TestIsInteractive(t *testing.T) {
	t.Parallel()

	if IsInteractive(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}
