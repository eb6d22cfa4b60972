package conn

import "time"

// keepaliveTimer fires KEEPALIVE(RESPOND) on the client's behalf every
// interval, and independently tracks max_lifetime for the timeout handler
// (spec.md §4.5: "on server it merely echoes" — the server never originates
// a periodic RESPOND ping, only max_lifetime tracking, reset whenever a
// KEEPALIVE arrives). Gated by connection state: started only in
// StateConnected after SETUP, stopped on StateDisconnected/StateClosed.
type keepaliveTimer struct {
	interval    time.Duration
	maxLifetime time.Duration
	tickEnabled bool

	tick    *time.Timer
	timeout *time.Timer

	onTick    func()
	onTimeout func()
}

func newKeepaliveTimer(interval, maxLifetime time.Duration, tickEnabled bool, onTick, onTimeout func()) *keepaliveTimer {
	return &keepaliveTimer{interval: interval, maxLifetime: maxLifetime, tickEnabled: tickEnabled, onTick: onTick, onTimeout: onTimeout}
}

func (k *keepaliveTimer) start() {
	k.stop()
	if k.interval > 0 && k.tickEnabled {
		k.tick = time.AfterFunc(k.interval, k.fireTick)
	}
	if k.maxLifetime > 0 {
		k.timeout = time.AfterFunc(k.maxLifetime, k.fireTimeout)
	}
}

func (k *keepaliveTimer) fireTick() {
	if k.onTick != nil {
		k.onTick()
	}
	if k.tick != nil {
		k.tick.Reset(k.interval)
	}
}

func (k *keepaliveTimer) fireTimeout() {
	if k.onTimeout != nil {
		k.onTimeout()
	}
}

// resetLifetime is called whenever a KEEPALIVE acknowledgement arrives,
// pushing max_lifetime's deadline out.
func (k *keepaliveTimer) resetLifetime() {
	if k.timeout != nil {
		k.timeout.Reset(k.maxLifetime)
	}
}

func (k *keepaliveTimer) stop() {
	if k.tick != nil {
		k.tick.Stop()
		k.tick = nil
	}
	if k.timeout != nil {
		k.timeout.Stop()
		k.timeout = nil
	}
}
