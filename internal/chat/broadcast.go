package chat

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// Delivery summarises one fan-out.
type Delivery struct {
	Sent   int
	Failed int
}

// Dispatcher writes envelopes to live connections. Delivery is best effort:
// a failed write is logged and counted, never retried, and never removes
// the recipient.
type Dispatcher struct {
	registry *Registry
	logger   log.FieldLogger
	observer Observer
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger log.FieldLogger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{registry: registry, logger: logger, observer: observer}
}

// Broadcast sends env to every active connection except exclude.
func (d *Dispatcher) Broadcast(env protocol.Envelope, exclude ID) Delivery {
	data := env.Encode()

	var res Delivery
	d.registry.Each(func(c *Connection) {
		if c.id == exclude || c.state != StateActive {
			return
		}
		d.logger.WithField("to", c.nick).Debug("Broadcasting")
		if err := d.write(c, data); err != nil {
			res.Failed++
			d.logger.WithFields(log.Fields{"conn_id": c.id, "nick": c.nick}).Warnf("Broadcast write failed: %v", err)
			return
		}
		res.Sent++
	})

	d.observer.Delivered(res.Sent)
	return res
}

// Send writes env to a single connection.
func (d *Dispatcher) Send(c *Connection, env protocol.Envelope) error {
	if err := d.write(c, env.Encode()); err != nil {
		return err
	}
	d.observer.Delivered(1)
	return nil
}

func (d *Dispatcher) write(c *Connection, data []byte) error {
	n, err := c.conn.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		d.observer.WriteFailed()
		return fmt.Errorf("write %d/%d bytes to %s: %w", n, len(data), c.id, err)
	}
	return nil
}
