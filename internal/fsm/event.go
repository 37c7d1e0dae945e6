package fsm

import "github.com/transitorykris/bgpd/internal/message"

// Event is one input to a peer's finite state machine (spec.md section
// 4.2).
type Event int

const (
	_ Event = iota
	ManualStart
	ManualStop
	ConnectRetryTimerExpires
	HoldTimerExpires
	KeepaliveTimerExpires
	TcpCrAcked
	TcpConnectionConfirmed
	TcpConnectionFails
	BgpOpen
	BgpHeaderErr
	BgpOpenMsgErr
	NotifMsgVerErr
	NotifMsg
	KeepAliveMsg
	UpdateMsg
	UpdateMsgErr
	AdjRibInChanged
	LocRibChanged
	AdjRibOutChanged
)

func (e Event) String() string {
	switch e {
	case ManualStart:
		return "ManualStart"
	case ManualStop:
		return "ManualStop"
	case ConnectRetryTimerExpires:
		return "ConnectRetryTimerExpires"
	case HoldTimerExpires:
		return "HoldTimerExpires"
	case KeepaliveTimerExpires:
		return "KeepaliveTimerExpires"
	case TcpCrAcked:
		return "TcpCrAcked"
	case TcpConnectionConfirmed:
		return "TcpConnectionConfirmed"
	case TcpConnectionFails:
		return "TcpConnectionFails"
	case BgpOpen:
		return "BgpOpen"
	case BgpHeaderErr:
		return "BgpHeaderErr"
	case BgpOpenMsgErr:
		return "BgpOpenMsgErr"
	case NotifMsgVerErr:
		return "NotifMsgVerErr"
	case NotifMsg:
		return "NotifMsg"
	case KeepAliveMsg:
		return "KeepAliveMsg"
	case UpdateMsg:
		return "UpdateMsg"
	case UpdateMsgErr:
		return "UpdateMsgErr"
	case AdjRibInChanged:
		return "AdjRibInChanged"
	case LocRibChanged:
		return "LocRibChanged"
	case AdjRibOutChanged:
		return "AdjRibOutChanged"
	default:
		return "Unknown"
	}
}

// eventQueue holds one peer's pending events in arrival order. Per
// spec.md section 9's resolution of the source's LIFO queue bug,
// events are processed FIFO: Pop always returns the oldest pending
// event. Unexported: the FSM owns the only reference and the core is
// single-threaded (spec.md section 5), so no locking is needed.
type eventQueue struct {
	items []queuedEvent
}

type queuedEvent struct {
	event  Event
	open   *message.Open
	update *message.Update
	notif  *message.Notification
}

func (q *eventQueue) push(e queuedEvent) {
	q.items = append(q.items, e)
}

func (q *eventQueue) pop() (queuedEvent, bool) {
	if len(q.items) == 0 {
		return queuedEvent{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *eventQueue) len() int {
	return len(q.items)
}
