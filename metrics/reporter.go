package metrics

import "sync/atomic"

// Reporter ships samples to a backend. Report must not block.
type Reporter interface {
	Report(r Record)
}

var _reporters atomic.Pointer[[]Reporter]

// SetMetricsReporters replaces the installed reporters.
func SetMetricsReporters(reporters []Reporter) {
	cp := append([]Reporter(nil), reporters...)
	_reporters.Store(&cp)
}

// AddReporter appends a reporter to the installed ones.
func AddReporter(r Reporter) {
	for {
		old := _reporters.Load()
		var next []Reporter
		if old != nil {
			next = append(next, *old...)
		}
		next = append(next, r)
		if _reporters.CompareAndSwap(old, &next) {
			return
		}
	}
}

// RemoveReporter uninstalls r if present.
func RemoveReporter(r Reporter) {
	for {
		old := _reporters.Load()
		if old == nil {
			return
		}
		next := make([]Reporter, 0, len(*old))
		for _, cur := range *old {
			if cur != r {
				next = append(next, cur)
			}
		}
		if _reporters.CompareAndSwap(old, &next) {
			return
		}
	}
}

func report(r Record) {
	list := _reporters.Load()
	if list == nil {
		return
	}
	for _, reporter := range *list {
		reporter.Report(r)
	}
}
