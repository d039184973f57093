// Package worker owns the lifecycle of the tile interception worker and the
// readiness signal the host waits on before adding the tile layer.
package worker

type State int32

const (
	Unregistered State = iota
	Registering
	Active
	Failed
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registering:
		return "registering"
	case Active:
		return "active"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
