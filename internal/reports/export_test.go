package reports

import "time"

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}
