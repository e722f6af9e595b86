package recast

import (
	"fmt"
	"time"
)

// LogCategory classifies a message recorded through BuildContext.Log.
type LogCategory int

const (
	LogProgress LogCategory = 1 + iota
	LogWarning
	LogError
)

const maxMessages = 1000

// BuildContext collects the log messages and per-stage timers produced while
// running the voxelization/meshing pipeline. It is not safe for concurrent
// use: callers building multiple meshes in parallel should use one
// BuildContext per goroutine.
type BuildContext struct {
	startTime [MaxTimers]time.Time
	accTime   [MaxTimers]time.Duration

	messages    [maxMessages]string
	numMessages int

	logEnabled   bool
	timerEnabled bool
}

// NewBuildContext returns a BuildContext with logging and timers both
// enabled or disabled according to state.
func NewBuildContext(state bool) *BuildContext {
	return &BuildContext{
		logEnabled:   state,
		timerEnabled: state,
	}
}

// EnableLog toggles whether Log/Progressf/Warningf/Errorf record messages.
func (ctx *BuildContext) EnableLog(state bool) {
	ctx.logEnabled = state
}

// EnableTimer toggles whether StartTimer/StopTimer accumulate durations.
func (ctx *BuildContext) EnableTimer(state bool) {
	ctx.timerEnabled = state
}

// ResetLog discards every recorded log message.
func (ctx *BuildContext) ResetLog() {
	if ctx.logEnabled {
		ctx.numMessages = 0
	}
}

// ResetTimers zeroes every accumulated timer.
func (ctx *BuildContext) ResetTimers() {
	if ctx.timerEnabled {
		for i := range ctx.accTime {
			ctx.accTime[i] = 0
		}
	}
}

func (ctx *BuildContext) Progressf(format string, v ...interface{}) {
	ctx.Log(LogProgress, format, v...)
}

func (ctx *BuildContext) Warningf(format string, v ...interface{}) {
	ctx.Log(LogWarning, format, v...)
}

func (ctx *BuildContext) Errorf(format string, v ...interface{}) {
	ctx.Log(LogError, format, v...)
}

// Log appends a formatted message to the context's log under category,
// provided logging is enabled and the message buffer isn't full.
func (ctx *BuildContext) Log(category LogCategory, format string, v ...interface{}) {
	if !ctx.logEnabled || ctx.numMessages >= maxMessages {
		return
	}
	var prefix string
	switch category {
	case LogProgress:
		prefix = "PROG "
	case LogWarning:
		prefix = "WARN "
	case LogError:
		prefix = "ERR "
	}
	ctx.messages[ctx.numMessages] = prefix + fmt.Sprintf(format, v...)
	ctx.numMessages++
}

// DumpLog prints a header followed by every recorded log message to stdout.
func (ctx *BuildContext) DumpLog(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	for i := 0; i < ctx.numMessages; i++ {
		fmt.Println(ctx.messages[i])
	}
}

// LogCount returns the number of messages currently recorded.
func (ctx *BuildContext) LogCount() int {
	return ctx.numMessages
}

// LogText returns the i-th recorded log message.
func (ctx *BuildContext) LogText(i int32) string {
	return ctx.messages[i]
}

// StartTimer marks the start of the named timer slot.
func (ctx *BuildContext) StartTimer(label TimerLabel) {
	if ctx.timerEnabled {
		ctx.startTime[label] = time.Now()
	}
}

// StopTimer accumulates the elapsed time since the matching StartTimer call
// into label's running total.
func (ctx *BuildContext) StopTimer(label TimerLabel) {
	if !ctx.timerEnabled {
		return
	}
	delta := time.Since(ctx.startTime[label])
	ctx.accTime[label] += delta
}

// AccumulatedTime returns the running total for label, or zero if timers are
// disabled.
func (ctx *BuildContext) AccumulatedTime(label TimerLabel) time.Duration {
	if ctx.timerEnabled {
		return ctx.accTime[label]
	}
	return time.Duration(0)
}
