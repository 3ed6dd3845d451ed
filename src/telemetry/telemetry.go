package telemetry

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//flushEvery is the number of records buffered before they are written out
const flushEvery = 64

//Record is the telemetry of one generation
type Record struct {
	Generation int   `csv:"generation"`
	LiveCells  int   `csv:"live_cells"`
	Changed    bool  `csv:"changed"`
	TickMicros int64 `csv:"tick_us"`
}

//Recorder keeps the records of a run and optionally streams them as CSV
type Recorder struct {
	mu            sync.Mutex
	records       []Record
	pending       []Record
	out           io.Writer
	headerWritten bool
}

//NewRecorder creates a recorder writing CSV to out, nil keeps the records in memory only
func NewRecorder(out io.Writer) *Recorder {
	return &Recorder{out: out}
}

//Add appends a record, flushing the buffered records when enough are pending
func (r *Recorder) Add(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if r.out == nil {
		return nil
	}
	r.pending = append(r.pending, rec)
	if len(r.pending) < flushEvery {
		return nil
	}
	return r.flush()
}

//Flush writes the pending records
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush()
}

func (r *Recorder) flush() error {
	if r.out == nil || len(r.pending) == 0 {
		return nil
	}
	if !r.headerWritten {
		if err := gocsv.Marshal(r.pending, r.out); err != nil {
			return errors.Wrap(err, "writing telemetry")
		}
		r.headerWritten = true
	} else {
		//the header is written once
		if err := gocsv.MarshalWithoutHeaders(r.pending, r.out); err != nil {
			return errors.Wrap(err, "writing telemetry")
		}
	}
	r.pending = r.pending[:0]
	return nil
}

//Reset drops the collected records, the CSV stream keeps going
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

//Records returns a copy of the collected records
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

//Summary describes a whole run
type Summary struct {
	Generations int
	MeanLive    float64
	StdDevLive  float64
	MinLive     float64
	MaxLive     float64
	MeanTick    time.Duration
}

//LogValue implements slog.LogValuer
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generations", s.Generations),
		slog.Float64("mean_live", s.MeanLive),
		slog.Float64("stddev_live", s.StdDevLive),
		slog.Float64("min_live", s.MinLive),
		slog.Float64("max_live", s.MaxLive),
		slog.Duration("mean_tick", s.MeanTick),
	)
}

//Summarize computes the run summary of the records
func Summarize(records []Record) Summary {
	s := Summary{Generations: len(records)}
	if len(records) == 0 {
		return s
	}
	live := make([]float64, len(records))
	ticks := make([]float64, len(records))
	for i, rec := range records {
		live[i] = float64(rec.LiveCells)
		ticks[i] = float64(rec.TickMicros)
	}
	s.MeanLive = stat.Mean(live, nil)
	if len(live) > 1 {
		s.StdDevLive = stat.StdDev(live, nil)
	}
	s.MinLive = floats.Min(live)
	s.MaxLive = floats.Max(live)
	s.MeanTick = time.Duration(stat.Mean(ticks, nil) * float64(time.Microsecond))
	return s
}
