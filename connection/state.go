package connection

/* State is the lifecycle of a Manager
 * Created -> Running -> Stopped; Stopped is terminal and may be entered from either state
 */
type State int

const (
	Created State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
