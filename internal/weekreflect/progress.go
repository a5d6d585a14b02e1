package weekreflect

import (
	"fmt"

	"go.uber.org/zap"
)

// Stage names one step of a run.
type Stage string

const (
	StageConfig         Stage = "config"
	StageDataCollection Stage = "data_collection"
	StageAnalysis       Stage = "analysis"
	StagePublish        Stage = "publish"
)

type Status string

const (
	StatusStart    Status = "start"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// ProgressEvent is emitted on every stage transition.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives events synchronously, in order.
type ProgressFunc func(ProgressEvent)

// emit delivers ev to sink. A panicking sink is logged and otherwise ignored.
func emit(sink ProgressFunc, logger *zap.Logger, ev ProgressEvent) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("progress sink panicked",
				zap.String("stage", string(ev.Stage)),
				zap.String("status", string(ev.Status)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	sink(ev)
}
