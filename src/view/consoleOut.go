package view

import (
	"fmt"
	"io"
	"sort"
	"time"

	"toruslife/src/simulation"
)

//ConsoleOut prints the progress of a non interactive run
type ConsoleOut struct {
	s          *simulation.Simulation
	w          io.Writer
	startTime  time.Time
	printField bool
	every      int
}

//NewConsoleOut creates the viewer printing to w the progress every n iterations,
//the final field is printed when printField is set
func NewConsoleOut(w io.Writer, every int, printField bool) *ConsoleOut {
	if every <= 0 {
		every = 10
	}
	return &ConsoleOut{w: w, every: every, printField: printField}
}

func (c *ConsoleOut) Refresh() {
	st := c.s.Status()
	if st.RunningMode == simulation.RunningStateFinished {
		totalTime := time.Since(c.startTime).Round(time.Millisecond)
		resultData := map[string]interface{}{
			"Last iteration": st.IterationNum,
			"Total time":     totalTime,
			"Live cells":     st.LiveCells,
			"Reason":         st.Reason,
		}
		fmt.Fprintln(c.w, "\nFinished:")
		c.printHashData(resultData)
		if c.printField {
			fmt.Fprint(c.w, c.s.Render())
		}
	} else if st.RunningMode == simulation.RunningStateRun {
		if st.IterationNum > 0 && st.IterationNum%c.every == 0 {
			fmt.Fprintf(c.w, "  Iterations done: %v, live cells: %v\n", st.IterationNum, st.LiveCells)
		}
	}
}

func (c *ConsoleOut) Register(s *simulation.Simulation) {
	c.s = s
	o := s.Options()
	fmt.Fprintln(c.w, "Running configuration:")
	c.printHashData(map[string]interface{}{
		"Dimension":      fmt.Sprintf("%v x %v", o.Width, o.Height),
		"Interval":       o.Interval,
		"Max iterations": fmt.Sprintf("%v steps", o.MaxSteps),
	})
}

func (c *ConsoleOut) Start() error {
	c.startTime = time.Now()
	fmt.Fprintln(c.w, "\nSimulation started...")
	return nil
}

func (c *ConsoleOut) printHashData(d map[string]interface{}) {
	propNames := make([]string, 0, len(d))
	for k := range d {
		propNames = append(propNames, k)
	}
	sort.Strings(propNames)
	for _, propName := range propNames {
		fmt.Fprintf(c.w, "  %s: %v\n", propName, d[propName])
	}
}
