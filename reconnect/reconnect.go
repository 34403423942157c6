// Package reconnect drives repeated Dial/Bind attempts against an SMSC,
// restarting with exponential back-off whenever a Session's transport is
// lost. It adapts the ESME dial side of the teacher's accept-loop back-off
// (Server.Serve's doubling tempDelay) onto cenkalti/backoff/v4's policy,
// since a dial here — unlike an accept — can fail indefinitely while the
// SMSC is unreachable and must not give up.
package reconnect

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	smpp "github.com/praekeltfoundation/smppesme"
)

// Dial establishes one fresh transport connection to the SMSC.
type Dial func(ctx context.Context) (io.ReadWriteCloser, error)

// Dialer repeatedly dials and binds a Session, one at a time, until its
// context is cancelled.
type Dialer struct {
	Dial     Dial
	Role     smpp.Role
	BindConf smpp.BindConf
	Config   smpp.Config
	Store    smpp.Store
	Opts     []smpp.Option

	mu      sync.Mutex
	current *smpp.Session
}

// NewDialer creates a Dialer with the given dial function and bind
// parameters.
func NewDialer(dial Dial, role smpp.Role, bc smpp.BindConf, cfg smpp.Config, store smpp.Store, opts ...smpp.Option) *Dialer {
	return &Dialer{
		Dial:     dial,
		Role:     role,
		BindConf: bc,
		Config:   cfg,
		Store:    store,
		Opts:     opts,
	}
}

// Run dials, binds, and waits for each Session to close, looping until ctx
// is cancelled. Dial failures back off exponentially starting from
// Config.InitialReconnectDelay; a successful dial resets the back-off.
func (d *Dialer) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.Config.InitialReconnectDelay
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = 5 * time.Second
	}
	bo.MaxElapsedTime = 0

	for {
		conn, err := d.Dial(ctx)
		if err != nil {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				return err
			}
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		bo.Reset()

		sess := smpp.Dial(conn, d.Role, d.BindConf, d.Config, d.Store, d.Opts...)
		d.setCurrent(sess)

		select {
		case <-sess.Closed():
		case <-ctx.Done():
			unbindCtx, cancel := context.WithTimeout(context.Background(), d.Config.BindTimeout)
			_ = sess.Unbind(unbindCtx)
			cancel()
			return ctx.Err()
		}
	}
}

func (d *Dialer) setCurrent(sess *smpp.Session) {
	d.mu.Lock()
	d.current = sess
	d.mu.Unlock()
}

// Current returns the most recently dialed Session, or nil before the
// first successful dial.
func (d *Dialer) Current() *smpp.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}
