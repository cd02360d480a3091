package app

import "github.com/dkeye/Hotseat/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what the gateway does with a slow consumer and whether a
// new transport connection from a source address is admitted.
type Policy interface {
	OnBackPressure(sid domain.SessionID) BackpressureAction
	AllowSource(addr string, connected int) bool
}

// SimplePolicy kicks slow members; with SingleIP set it admits one
// connection per source address.
type SimplePolicy struct {
	SingleIP bool
}

func (SimplePolicy) OnBackPressure(domain.SessionID) BackpressureAction {
	return KickMember
}

func (p SimplePolicy) AllowSource(_ string, connected int) bool {
	return !p.SingleIP || connected == 0
}
