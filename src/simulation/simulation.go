package simulation

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"toruslife/src/seed"
	"toruslife/src/telemetry"
	"toruslife/src/universe"
)

//Options represents the Simulation's configurable options
type Options struct {
	Width    uint32
	Height   uint32
	Interval time.Duration //pause between the generations in run mode, 0 runs at full speed
	MaxSteps int           //0 means no limit
	Seed     int64         //seed of the random and noise settling
}

//Status represents the status of the Simulation at concrete moment
type Status struct {
	IterationNum  int
	RunningMode   RunningState
	LiveCells     int
	IterationTime time.Duration
	Reason        string //why the simulation has finished
}

//Area is a copy of the field for the viewers
type Area struct {
	Width  uint32
	Height uint32
	Cells  *universe.BitGrid
}

//Alive reports the state of the cell at row, col
func (a Area) Alive(row, col uint32) bool {
	return bool(a.Cells.Get(int(row)*int(a.Width) + int(col)))
}

//Viewer is the interface to any Viewer - the object who can display simulation data or control the engine
type Viewer interface {
	Refresh()
	Register(s *Simulation)
	Start() error
}

//RunningState is the simulation running status at the concrete moment
type RunningState int

const (
	RunningStateManual RunningState = iota
	RunningStateStep
	RunningStateRun
	RunningStateFinished
)

func (r RunningState) String() string {
	switch r {
	case RunningStateManual:
		return "manual"
	case RunningStateStep:
		return "step"
	case RunningStateRun:
		return "run"
	case RunningStateFinished:
		return "finished"
	}
	return fmt.Sprintf("RunningState(%d)", int(r))
}

//the reasons to finish the run
const (
	ReasonExtinct  = "extinct"
	ReasonStable   = "stable"
	ReasonCycle    = "cycle"
	ReasonMaxSteps = "max steps"
)

//historyLen is the number of the previous generations compared with the current one
const historyLen = 3

//DefaultOptions are used when nil Options are passed to New
var DefaultOptions = Options{
	Width:    universe.DefWidth,
	Height:   universe.DefHeight,
	Interval: 100 * time.Millisecond,
	MaxSteps: 1000,
	Seed:     1,
}

//Simulation runs one universe
//all the changes of the universe are executed by the Serve loop one by one,
//so the universe is never touched by two goroutines at once
type Simulation struct {
	options Options
	state   struct {
		Status
		sync.Mutex
	}
	area struct {
		u *universe.Universe
		sync.Mutex
	}
	stateCh   chan Status
	views     []Viewer
	controlCh chan func()
	history   []string
	recorder  *telemetry.Recorder
	rng       *rand.Rand
	quit      chan struct{} //closed when Serve has to return, the commands are dropped after that
	quitOnce  sync.Once
}

//New creates the Simulation instance
//every executed command writes the new Status to stateCh if it is not nil,
//the channel has to be drained or Serve blocks until its context is done
func New(o *Options, stateCh chan Status) *Simulation {
	if o == nil {
		o = &DefaultOptions
	}
	s := &Simulation{
		options:   *o,
		stateCh:   stateCh,
		controlCh: make(chan func(), 16),
		rng:       rand.New(rand.NewSource(o.Seed)),
		quit:      make(chan struct{}),
	}
	s.area.u = universe.NewUniverseWithSize(o.Width, o.Height)
	s.resetHistory()
	return s
}

//SetRecorder sets the telemetry recorder, must be called before Serve
func (s *Simulation) SetRecorder(r *telemetry.Recorder) {
	s.recorder = r
}

//RegisterViewer registers the viewer - the simulation will call the viewer when the state is changed
//must be called before Serve
func (s *Simulation) RegisterViewer(v Viewer) {
	s.views = append(s.views, v)
	v.Register(s)
}

//AddTemplate adds the seeding template to the universe, must be called before Serve
func (s *Simulation) AddTemplate(tmpl universe.Template) {
	s.area.Lock()
	s.area.u.AddTemplate(tmpl)
	s.area.Unlock()
}

//Templates returns the names of the known templates
func (s *Simulation) Templates() []string {
	s.area.Lock()
	defer s.area.Unlock()
	return s.area.u.Templates()
}

//StateCh returns the channel with the status updates
func (s *Simulation) StateCh() chan Status {
	return s.stateCh
}

//Status returns current status represented by Status struct
func (s *Simulation) Status() Status {
	s.state.Lock()
	defer s.state.Unlock()
	return s.state.Status
}

//Options returns current configuration represented by Options struct
func (s *Simulation) Options() Options {
	s.area.Lock()
	defer s.area.Unlock()
	return s.options
}

//Area returns the copy of the current field
func (s *Simulation) Area() Area {
	s.area.Lock()
	defer s.area.Unlock()
	u := s.area.u
	return Area{Width: u.Width(), Height: u.Height(), Cells: u.Cells().Clone()}
}

//Render returns the text picture of the current field
func (s *Simulation) Render() string {
	s.area.Lock()
	defer s.area.Unlock()
	return s.area.u.Render()
}

//Run starts the simulation, returns immediately
func (s *Simulation) Run() {
	s.send(s.run)
}

//Stop stops the simulation, returns immediately
func (s *Simulation) Stop() {
	s.send(s.stop)
}

//Step does one simulation step, returns immediately
func (s *Simulation) Step() {
	s.send(s.step)
}

//Clear kills all cells and resets all counters, returns immediately
func (s *Simulation) Clear() {
	s.send(s.clear)
}

//SettleTemplate replaces the field with the seeding template, returns immediately
func (s *Simulation) SettleTemplate(name string) {
	s.send(func() {
		s.settle(func(u *universe.Universe) error {
			u.SetTemplate(name)
			return nil
		})
	})
}

//Settle makes the cells alive keeping the rest of the field, returns immediately
func (s *Simulation) Settle(cells []universe.Coord) {
	s.send(func() {
		s.settle(func(u *universe.Universe) error {
			return u.SetCells(cells)
		})
	})
}

//SettleRandom replaces the field with random data, returns immediately
func (s *Simulation) SettleRandom(density float64) {
	s.send(func() {
		s.settle(func(u *universe.Universe) error {
			u.ResetCells()
			return u.SetCells(seed.Random(u.Width(), u.Height(), density, s.rng))
		})
	})
}

//SettleNoise replaces the field with perlin noise cells, returns immediately
func (s *Simulation) SettleNoise(threshold float64) {
	s.send(func() {
		s.settle(func(u *universe.Universe) error {
			u.ResetCells()
			return u.SetCells(seed.Noise(u.Width(), u.Height(), threshold, s.rng.Int63()))
		})
	})
}

//InverseCell inverses the cell state at row, col, returns immediately
func (s *Simulation) InverseCell(row, col uint32) {
	s.send(func() {
		s.settle(func(u *universe.Universe) error {
			if row >= u.Height() || col >= u.Width() {
				return errors.Wrapf(universe.ErrOutOfBounds, "inverse cell (%d, %d)", row, col)
			}
			return u.SetCell(row, col, !u.Get(row, col))
		})
	})
}

//Resize changes the dimension, the field is cleared, returns immediately
func (s *Simulation) Resize(width, height uint32) {
	s.send(func() {
		s.area.Lock()
		s.area.u.SetWidth(width)
		s.area.u.SetHeight(height)
		s.options.Width = width
		s.options.Height = height
		s.area.Unlock()
		s.clear()
	})
}

//send queues the command for the Serve loop, the command is dropped when the loop has quit
func (s *Simulation) send(cmd func()) {
	select {
	case s.controlCh <- cmd:
	case <-s.quit:
	}
}

//Serve is the main cycle, executes the commands until ctx is done
func (s *Simulation) Serve(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
		}
		tick = nil
	}
	defer stopTicker()
	defer s.closeQuit()
	//the status writes inside the commands wait for quit
	go func() {
		<-ctx.Done()
		s.closeQuit()
	}()

	for {
		running := s.Status().RunningMode == RunningStateRun
		if running && tick == nil {
			if s.options.Interval > 0 {
				ticker = time.NewTicker(s.options.Interval)
				tick = ticker.C
			} else {
				tick = immediate
			}
		} else if !running && tick != nil {
			stopTicker()
		}

		select {
		case <-s.quit:
			return nil
		case cmd := <-s.controlCh:
			cmd()
		case <-tick:
			s.step()
		}
	}
}

func (s *Simulation) closeQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

//immediate is always ready to receive
var immediate = func() chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

//settle applies the change to the universe and starts the history from the new field
func (s *Simulation) settle(change func(u *universe.Universe) error) {
	s.area.Lock()
	err := change(s.area.u)
	live := s.area.u.LiveCells()
	s.area.Unlock()
	if err != nil {
		slog.Warn("settle failed", "err", err)
	}
	s.resetHistory()

	s.state.Lock()
	s.state.LiveCells = live
	if s.state.RunningMode == RunningStateFinished {
		s.state.RunningMode = RunningStateManual
		s.state.Reason = ""
	}
	mode := s.state.RunningMode
	s.state.Unlock()
	s.switchRunningState(mode)
	s.refreshView()
}

//run switches to the run mode, the Serve loop does the steps
func (s *Simulation) run() {
	s.state.Lock()
	s.state.Reason = ""
	s.state.Unlock()
	s.switchRunningState(RunningStateRun)
	s.refreshView()
}

//stop stops the running cycle
func (s *Simulation) stop() {
	mode := s.Status().RunningMode
	if mode == RunningStateRun {
		mode = RunningStateManual
	}
	s.switchRunningState(mode)
	s.refreshView()
}

//step does the new one state calculation for entire universe
func (s *Simulation) step() {
	rm := s.Status().RunningMode
	if rm != RunningStateRun {
		rm = RunningStateManual
	}
	defer s.refreshView()

	if s.maxStepsReached() {
		s.finish(ReasonMaxSteps)
		return
	}

	s.state.Lock()
	s.state.RunningMode = RunningStateStep
	s.state.Unlock()

	s.area.Lock()
	start := time.Now()
	s.area.u.Tick()
	elapsed := time.Since(start)
	live := s.area.u.LiveCells()
	hash := gridHash(s.area.u.Cells())
	s.area.Unlock()

	s.state.Lock()
	s.state.IterationNum++
	s.state.LiveCells = live
	s.state.IterationTime = elapsed
	iteration := s.state.IterationNum
	s.state.Unlock()

	reason := s.checkHistory(hash)
	if live == 0 {
		reason = ReasonExtinct
	}
	if s.recorder != nil {
		err := s.recorder.Add(telemetry.Record{
			Generation: iteration,
			LiveCells:  live,
			Changed:    reason != ReasonStable,
			TickMicros: elapsed.Microseconds(),
		})
		if err != nil {
			slog.Error("telemetry record failed", "generation", iteration, "err", err)
		}
	}
	if reason == "" && s.maxStepsReached() {
		reason = ReasonMaxSteps
	}

	if reason != "" {
		s.finish(reason)
		return
	}
	s.switchRunningState(rm)
}

func (s *Simulation) maxStepsReached() bool {
	return s.options.MaxSteps > 0 && s.Status().IterationNum >= s.options.MaxSteps
}

func (s *Simulation) finish(reason string) {
	s.state.Lock()
	s.state.Reason = reason
	s.state.Unlock()
	slog.Info("simulation finished", "iteration", s.Status().IterationNum, "reason", reason)
	s.switchRunningState(RunningStateFinished)
}

//clear clears the universe data, reset all counters
func (s *Simulation) clear() {
	s.area.Lock()
	s.area.u.ResetCells()
	s.area.Unlock()
	s.resetHistory()
	if s.recorder != nil {
		s.recorder.Reset()
	}

	s.state.Lock()
	s.state.IterationNum = 0
	s.state.LiveCells = 0
	s.state.IterationTime = 0
	s.state.Reason = ""
	s.state.Unlock()
	s.switchRunningState(RunningStateManual)
	s.refreshView()
}

//switchRunningState switch the state of the simulation to RunningState
//also writes the new state to the stateCh to signal upper control software
func (s *Simulation) switchRunningState(to RunningState) {
	s.state.Lock()
	s.state.RunningMode = to
	st := s.state.Status
	s.state.Unlock()
	if s.stateCh == nil {
		return
	}
	select {
	case s.stateCh <- st:
	case <-s.quit:
	}
}

//checkHistory compares the new generation with the previous ones and remembers it
func (s *Simulation) checkHistory(hash string) (reason string) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i] != hash {
			continue
		}
		if i == len(s.history)-1 {
			reason = ReasonStable
		} else {
			reason = ReasonCycle
		}
		break
	}
	s.history = append(s.history, hash)
	if len(s.history) > historyLen+1 {
		s.history = s.history[1:]
	}
	return
}

func (s *Simulation) resetHistory() {
	s.area.Lock()
	hash := gridHash(s.area.u.Cells())
	s.area.Unlock()
	s.history = append(s.history[:0], hash)
}

//refreshView calls Refresh event for all registered views
func (s *Simulation) refreshView() {
	for _, v := range s.views {
		v.Refresh()
	}
}

//gridHash returns the MD5 hash of the packed cells
func gridHash(g *universe.BitGrid) string {
	h := md5.New()
	var buf [8]byte
	for _, w := range g.Words() {
		binary.LittleEndian.PutUint64(buf[:], w)
		h.Write(buf[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
