package view

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"toruslife/src/simulation"
	"toruslife/src/universe"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func testArea(width, height uint32, alive ...universe.Coord) simulation.Area {
	u := universe.NewUniverseWithSize(width, height)
	_ = u.SetCells(alive)
	return simulation.Area{Width: width, Height: height, Cells: u.Cells()}
}

func TestFieldText(t *testing.T) {
	a := testArea(3, 2, universe.Coord{Row: 0, Col: 1}, universe.Coord{Row: 1, Col: 2})
	if got := fieldText(a, 10, 10, "#", "."); got != ".#.\n..#" {
		t.Errorf("fieldText() = %q", got)
	}
}

func TestFieldTextCropped(t *testing.T) {
	a := testArea(5, 4, universe.Coord{Row: 0, Col: 0})
	got := fieldText(a, 2, 3, "#", ".")
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), got)
	}
	if lines[0] != "#." || lines[1] != ".." {
		t.Errorf("lines = %q", lines[:2])
	}
	if lines[2] != fieldTooLarge {
		t.Errorf("last line = %q, want the crop warning", lines[2])
	}
}

func TestHelpText(t *testing.T) {
	k := []keyBindings{{name: "N", descr: "Next step"}, {name: "R", descr: "Run"}}
	got := helpText(k)
	if !strings.HasPrefix(got, "KEYBINDINGS: ") || !strings.Contains(got, "Next step") || !strings.Contains(got, ", ") {
		t.Errorf("helpText() = %q", got)
	}
}

func TestConsoleOut(t *testing.T) {
	var w syncBuffer
	stateCh := make(chan simulation.Status, 10)
	s := simulation.New(&simulation.Options{Width: 5, Height: 5, MaxSteps: 3}, stateCh)
	c := NewConsoleOut(&w, 1, true)
	s.RegisterViewer(c)
	if !strings.Contains(w.String(), "Dimension: 5 x 5") {
		t.Errorf("configuration not printed: %q", w.String())
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	s.Settle([]universe.Coord{{Row: 2, Col: 2}})
	s.Step()
	for st := range stateCh {
		if st.RunningMode == simulation.RunningStateFinished {
			break
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(w.String(), "□□□□□\n") {
		if time.Now().After(deadline) {
			t.Fatalf("result not printed: %q", w.String())
		}
		time.Sleep(time.Millisecond)
	}
	if !strings.Contains(w.String(), "Reason: extinct") {
		t.Errorf("reason not printed: %q", w.String())
	}
}
