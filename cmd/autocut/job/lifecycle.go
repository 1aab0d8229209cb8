package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"
)

const (
	StatePending    = "pending"
	StateProbing    = "probing"
	StateExtracting = "extracting"
	StateDetecting  = "detecting"
	StateCutting    = "cutting"
	StateDone       = "done"
	StateFailed     = "failed"
)

const (
	eventProbe   = "probe"
	eventExtract = "extract"
	eventDetect  = "detect"
	eventCut     = "cut"
	eventFinish  = "finish"
	eventFail    = "fail"
)

// lifecycle tracks the processing stage of a single input file.
type lifecycle struct {
	file string
	fsm  *fsm.FSM
}

func newLifecycle(file string) *lifecycle {
	lc := &lifecycle{
		file: file,
	}

	lc.fsm = fsm.NewFSM(
		StatePending,
		fsm.Events{
			{Name: eventProbe, Src: []string{StatePending}, Dst: StateProbing},
			{Name: eventExtract, Src: []string{StateProbing}, Dst: StateExtracting},
			{Name: eventDetect, Src: []string{StateExtracting}, Dst: StateDetecting},
			{Name: eventCut, Src: []string{StateDetecting}, Dst: StateCutting},
			{Name: eventFinish, Src: []string{StateCutting}, Dst: StateDone},
			{
				Name: eventFail,
				Src:  []string{StatePending, StateProbing, StateExtracting, StateDetecting, StateCutting},
				Dst:  StateFailed,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				slog.Debug("file state changed",
					slog.String("file", lc.file),
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)

	return lc
}

// event fires the named transition. Transitions must still be recorded once
// the processing context is canceled, so cancellation is not propagated.
func (lc *lifecycle) event(ctx context.Context, name string) error {
	if err := lc.fsm.Event(context.WithoutCancel(ctx), name); err != nil {
		return fmt.Errorf("failed to %s from state %s: %w", name, lc.fsm.Current(), err)
	}
	return nil
}

func (lc *lifecycle) current() string {
	return lc.fsm.Current()
}
