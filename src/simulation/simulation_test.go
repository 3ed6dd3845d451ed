package simulation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"toruslife/src/telemetry"
	"toruslife/src/universe"
)

func newTestSimulation(t *testing.T, width, height uint32, maxSteps int) (*Simulation, chan Status) {
	t.Helper()
	o := Options{Width: width, Height: height, MaxSteps: maxSteps, Seed: 1}
	stateCh := make(chan Status, 10)
	s := New(&o, stateCh)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Serve(ctx); err != nil {
			t.Errorf("Serve() = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		//unblock a pending status write
		for {
			select {
			case <-done:
				return
			case <-stateCh:
			}
		}
	})
	return s, stateCh
}

func nextStatus(t *testing.T, stateCh chan Status) Status {
	t.Helper()
	select {
	case st := <-stateCh:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("no status received")
	}
	return Status{}
}

func waitMode(t *testing.T, stateCh chan Status, mode RunningState) Status {
	t.Helper()
	for {
		st := nextStatus(t, stateCh)
		if st.RunningMode == mode {
			return st
		}
	}
}

func TestSettle(t *testing.T) {
	s, stateCh := newTestSimulation(t, 6, 6, 0)
	s.Settle([]universe.Coord{{Row: 1, Col: 1}, {Row: 2, Col: 2}})
	st := nextStatus(t, stateCh)
	if st.LiveCells != 2 || st.RunningMode != RunningStateManual {
		t.Errorf("status = %+v, want 2 live cells in manual mode", st)
	}
	a := s.Area()
	if !a.Alive(1, 1) || !a.Alive(2, 2) || a.Alive(0, 0) {
		t.Error("area does not match settled cells")
	}

	s.Settle([]universe.Coord{{Row: 6, Col: 0}})
	st = nextStatus(t, stateCh)
	if st.LiveCells != 2 {
		t.Errorf("out of range settle changed live cells to %d", st.LiveCells)
	}
}

func TestStepStable(t *testing.T) {
	s, stateCh := newTestSimulation(t, 6, 6, 0)
	s.Settle([]universe.Coord{{Row: 2, Col: 2}, {Row: 2, Col: 3}, {Row: 3, Col: 2}, {Row: 3, Col: 3}})
	nextStatus(t, stateCh)

	s.Step()
	st := nextStatus(t, stateCh)
	if st.RunningMode != RunningStateFinished || st.Reason != ReasonStable {
		t.Errorf("status = %+v, want finished as stable", st)
	}
	if st.IterationNum != 1 || st.LiveCells != 4 {
		t.Errorf("status = %+v, want iteration 1 with 4 live cells", st)
	}
}

func TestStepCycle(t *testing.T) {
	s, stateCh := newTestSimulation(t, 5, 5, 0)
	s.Settle([]universe.Coord{{Row: 2, Col: 1}, {Row: 2, Col: 2}, {Row: 2, Col: 3}})
	nextStatus(t, stateCh)

	s.Step()
	st := nextStatus(t, stateCh)
	if st.RunningMode != RunningStateManual || st.IterationNum != 1 || st.LiveCells != 3 {
		t.Fatalf("first step status = %+v", st)
	}
	if a := s.Area(); !a.Alive(1, 2) || !a.Alive(3, 2) || a.Alive(2, 1) {
		t.Error("blinker is not vertical after one step")
	}

	s.Step()
	st = nextStatus(t, stateCh)
	if st.RunningMode != RunningStateFinished || st.Reason != ReasonCycle {
		t.Errorf("second step status = %+v, want finished as cycle", st)
	}
}

func TestStepExtinct(t *testing.T) {
	s, stateCh := newTestSimulation(t, 5, 5, 0)
	s.Settle([]universe.Coord{{Row: 2, Col: 2}})
	nextStatus(t, stateCh)

	s.Step()
	st := nextStatus(t, stateCh)
	if st.RunningMode != RunningStateFinished || st.Reason != ReasonExtinct || st.LiveCells != 0 {
		t.Errorf("status = %+v, want finished as extinct", st)
	}
}

func TestRunMaxSteps(t *testing.T) {
	s, stateCh := newTestSimulation(t, 8, 8, 10)
	rec := telemetry.NewRecorder(nil)
	s.SetRecorder(rec)
	s.Settle([]universe.Coord{{Row: 0, Col: 1}, {Row: 1, Col: 2}, {Row: 2, Col: 0}, {Row: 2, Col: 1}, {Row: 2, Col: 2}})
	nextStatus(t, stateCh)

	s.Run()
	st := waitMode(t, stateCh, RunningStateFinished)
	if st.Reason != ReasonMaxSteps || st.IterationNum != 10 {
		t.Errorf("status = %+v, want finished by max steps at iteration 10", st)
	}
	if st.LiveCells != 5 {
		t.Errorf("live cells = %d, want 5", st.LiveCells)
	}

	records := rec.Records()
	if len(records) != 10 {
		t.Fatalf("records = %d, want 10", len(records))
	}
	for i, r := range records {
		if r.Generation != i+1 || r.LiveCells != 5 || !r.Changed {
			t.Errorf("record %d = %+v", i, r)
		}
	}

	s.Step()
	st = nextStatus(t, stateCh)
	if st.IterationNum != 10 || st.Reason != ReasonMaxSteps {
		t.Errorf("step after max steps: status = %+v", st)
	}
}

func TestRunStop(t *testing.T) {
	s, stateCh := newTestSimulation(t, 16, 16, 0)
	s.SettleRandom(0.4)
	nextStatus(t, stateCh)

	s.Run()
	waitMode(t, stateCh, RunningStateRun)
	s.Stop()
	for {
		st := nextStatus(t, stateCh)
		if st.RunningMode == RunningStateManual || st.RunningMode == RunningStateFinished {
			break
		}
	}
	if mode := s.Status().RunningMode; mode == RunningStateRun {
		t.Errorf("mode after Stop = %v", mode)
	}
}

func TestClear(t *testing.T) {
	s, stateCh := newTestSimulation(t, 5, 5, 0)
	s.Settle([]universe.Coord{{Row: 2, Col: 1}, {Row: 2, Col: 2}, {Row: 2, Col: 3}})
	nextStatus(t, stateCh)
	s.Step()
	nextStatus(t, stateCh)

	s.Clear()
	st := nextStatus(t, stateCh)
	if st != (Status{RunningMode: RunningStateManual}) {
		t.Errorf("status after Clear = %+v", st)
	}
	if a := s.Area(); a.Cells.Count() != 0 {
		t.Errorf("live cells after Clear = %d", a.Cells.Count())
	}
}

func TestSettleTemplate(t *testing.T) {
	s, stateCh := newTestSimulation(t, 128, 128, 0)
	s.SettleTemplate(universe.GliderGunTemplate)
	st := nextStatus(t, stateCh)
	if st.LiveCells != 72 {
		t.Errorf("live cells = %d, want 72", st.LiveCells)
	}

	s.SettleTemplate("unknown")
	st = nextStatus(t, stateCh)
	if st.LiveCells != 0 {
		t.Errorf("live cells after unknown template = %d, want 0", st.LiveCells)
	}
}

func TestSettleNoise(t *testing.T) {
	s, stateCh := newTestSimulation(t, 20, 20, 0)
	s.SettleNoise(-2)
	st := nextStatus(t, stateCh)
	if st.LiveCells != 400 {
		t.Errorf("live cells = %d, want 400", st.LiveCells)
	}
}

func TestInverseCell(t *testing.T) {
	s, stateCh := newTestSimulation(t, 5, 4, 0)
	s.InverseCell(3, 4)
	if st := nextStatus(t, stateCh); st.LiveCells != 1 {
		t.Errorf("live cells = %d, want 1", st.LiveCells)
	}
	s.InverseCell(3, 4)
	if st := nextStatus(t, stateCh); st.LiveCells != 0 {
		t.Errorf("live cells = %d, want 0", st.LiveCells)
	}
	s.InverseCell(4, 0)
	if st := nextStatus(t, stateCh); st.LiveCells != 0 {
		t.Errorf("live cells after outside inverse = %d, want 0", st.LiveCells)
	}
}

func TestResize(t *testing.T) {
	s, stateCh := newTestSimulation(t, 5, 5, 0)
	s.Settle([]universe.Coord{{Row: 1, Col: 1}})
	nextStatus(t, stateCh)

	s.Resize(9, 3)
	nextStatus(t, stateCh)
	a := s.Area()
	if a.Width != 9 || a.Height != 3 || a.Cells.Len() != 27 || a.Cells.Count() != 0 {
		t.Errorf("area = %dx%d with %d of %d cells alive", a.Width, a.Height, a.Cells.Count(), a.Cells.Len())
	}
	if o := s.Options(); o.Width != 9 || o.Height != 3 {
		t.Errorf("options = %+v", o)
	}
}

func TestCommandsAfterServeReturned(t *testing.T) {
	o := Options{Width: 5, Height: 5}
	s := New(&o, make(chan Status, 10))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve(ctx)
	}()
	cancel()
	<-done

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		//more commands than the control channel can buffer
		for i := 0; i < 20; i++ {
			s.Step()
			s.Run()
			s.Settle([]universe.Coord{{Row: 1, Col: 1}})
			s.InverseCell(0, 0)
			s.Resize(6, 6)
		}
	}()
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("commands blocked after Serve returned")
	}
}

func TestServeReturnsWithUnreadStatus(t *testing.T) {
	o := Options{Width: 5, Height: 5}
	//nobody reads the statuses
	s := New(&o, make(chan Status))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve(ctx)
	}()
	s.Step()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

type countingViewer struct {
	refreshed int32
	s         *Simulation
}

func (v *countingViewer) Refresh()               { atomic.AddInt32(&v.refreshed, 1) }
func (v *countingViewer) Register(s *Simulation) { v.s = s }
func (v *countingViewer) Start() error           { return nil }

func TestViewerRefresh(t *testing.T) {
	v := &countingViewer{}
	o := Options{Width: 5, Height: 5}
	stateCh := make(chan Status, 10)
	s := New(&o, stateCh)
	s.RegisterViewer(v)
	if v.s != s {
		t.Fatal("viewer not registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	s.Settle([]universe.Coord{{Row: 2, Col: 2}})
	nextStatus(t, stateCh)
	s.Step()
	nextStatus(t, stateCh)
	//refresh runs after the status is published
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&v.refreshed) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("refreshed %d times, want 2", atomic.LoadInt32(&v.refreshed))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGridHash(t *testing.T) {
	a := universe.NewBitGrid(100)
	b := universe.NewBitGrid(100)
	if gridHash(a) != gridHash(b) {
		t.Error("equal grids have different hashes")
	}
	b.Set(70, universe.Alive)
	if gridHash(a) == gridHash(b) {
		t.Error("different grids have equal hashes")
	}
}

func TestRunningStateString(t *testing.T) {
	if RunningStateFinished.String() != "finished" || RunningState(9).String() != "RunningState(9)" {
		t.Error("unexpected RunningState names")
	}
}
