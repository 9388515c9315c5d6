// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package auditlink

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"grimm.is/auditlink/internal/errors"
	"grimm.is/auditlink/internal/logging"
	"grimm.is/auditlink/internal/metrics"
)

// Transport dispatches one tagged control request and returns its
// correlated reply stream. The channel carries the exchange's reply
// datagrams and is closed when the exchange completes: after NLMSG_DONE
// for dumps, after a zero-code NLMSG_ERROR (a bare ack, delivered as
// stream end rather than as an item), or after a non-zero NLMSG_ERROR
// datagram has been delivered. Implementations demultiplex concurrent
// exchanges internally; a caller abandoning its context must not
// corrupt other exchanges.
type Transport interface {
	Exchange(ctx context.Context, req Request) (<-chan syscall.NetlinkMessage, error)
}

// exchangeDepth bounds the reply buffer of one exchange. A rule dump
// producing more datagrams than a consumer has drained ends the
// exchange with an NLMSG_OVERRUN marker instead of dropping items.
const exchangeDepth = 1024

type exchange struct {
	ch        chan syscall.NetlinkMessage
	abandoned chan struct{}
	completed chan struct{}
}

// finish closes the stream. Must be called exactly once, by whichever
// side owns the channel when the exchange reaches its terminal state.
func (ex *exchange) finish() {
	close(ex.ch)
	close(ex.completed)
}

// interrupt delivers one final datagram (blocking until the consumer
// takes it or abandons the exchange) and closes the stream.
func (ex *exchange) interrupt(m syscall.NetlinkMessage) {
	select {
	case ex.ch <- m:
	case <-ex.abandoned:
	}
	ex.finish()
}

// Conn is a NETLINK_AUDIT socket with request/reply correlation. It is
// a cheap, shareable handle: any number of goroutines may run exchanges
// concurrently, each tagged with its own sequence number and awaited
// independently. Unsolicited datagrams (kernel event traffic, replies
// to abandoned exchanges) are counted and dropped.
type Conn struct {
	fd     int
	seq    atomic.Uint32
	logger *logging.Logger
	stats  *metrics.Metrics

	mu      sync.Mutex
	pending map[uint32]*exchange
	closed  bool

	readerDone chan struct{}
}

// Dial opens the audit netlink socket. Requires CAP_AUDIT_CONTROL for
// mutating operations. A nil logger uses the process default.
func Dial(logger *logging.Logger) (*Conn, error) {
	if logger == nil {
		logger = logging.Default()
	}
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_AUDIT)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "open audit netlink socket")
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.KindUnavailable, "bind audit netlink socket")
	}
	// Periodic receive timeout so Close can stop the reader; a plain
	// close(2) does not wake a goroutine blocked in recvfrom.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.KindUnavailable, "set audit socket receive timeout")
	}

	c := &Conn{
		fd:         fd,
		logger:     logger.WithComponent("conn"),
		stats:      metrics.Default(),
		pending:    make(map[uint32]*exchange),
		readerDone: make(chan struct{}),
	}
	go c.reader()
	return c, nil
}

// Exchange implements Transport.
func (c *Conn) Exchange(ctx context.Context, req Request) (<-chan syscall.NetlinkMessage, error) {
	seq := c.seq.Add(1)
	ex := &exchange{
		ch:        make(chan syscall.NetlinkMessage, exchangeDepth),
		abandoned: make(chan struct{}),
		completed: make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.KindRequestFailed, "audit connection is closed")
	}
	c.pending[seq] = ex
	c.mu.Unlock()

	if err := c.send(seq, req); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, errors.Wrap(err, errors.KindRequestFailed, "send audit request")
	}

	go c.watch(ctx, seq, ex)

	return ex.ch, nil
}

// watch releases the correlation slot if the caller's context ends
// before the exchange completes. Late replies become unroutable and
// are dropped by the reader; no cancel message exists in the wire
// protocol.
func (c *Conn) watch(ctx context.Context, seq uint32, ex *exchange) {
	select {
	case <-ex.completed:
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		close(ex.abandoned)
	}
}

func (c *Conn) send(seq uint32, req Request) error {
	length := unix.NLMSG_HDRLEN + len(req.Data)
	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:4], uint32(length))
	binary.LittleEndian.PutUint16(b[4:6], req.Type)
	binary.LittleEndian.PutUint16(b[6:8], req.Flags)
	binary.LittleEndian.PutUint32(b[8:12], seq)
	// Header pid stays zero; the kernel addresses replies by socket.
	copy(b[unix.NLMSG_HDRLEN:], req.Data)
	return unix.Sendto(c.fd, b, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK})
}

// Close shuts the connection down. Pending exchanges are interrupted
// with an NLMSG_OVERRUN marker so their callers observe a protocol
// error rather than a spurious bare-ack success.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	<-c.readerDone
	return unix.Close(c.fd)
}

func (c *Conn) reader() {
	defer close(c.readerDone)
	buf := make([]byte, 2*maxMessageLength)
	for {
		n, _, err := unix.Recvfrom(c.fd, buf, 0)
		if err == unix.EINTR || err == unix.EAGAIN {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				c.failPending()
				return
			}
			continue
		}
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Error("audit socket receive failed", "error", err)
			}
			c.failPending()
			return
		}

		// Datagrams are routed from a copy; buf is reused.
		raw := make([]byte, n)
		copy(raw, buf[:n])
		msgs, perr := syscall.ParseNetlinkMessage(raw)
		if perr != nil {
			c.logger.Warn("malformed netlink datagram", "error", perr, "bytes", n)
			continue
		}
		for _, m := range msgs {
			c.route(m)
		}
	}
}

// classifyDatagram decides whether a datagram ends its exchange and
// whether it is delivered to the consumer. A zero-code NLMSG_ERROR is
// the bare ack: it terminates the stream without producing an item,
// which is how "silence means success" reaches the handle.
func classifyDatagram(m syscall.NetlinkMessage) (terminal, deliver bool) {
	switch m.Header.Type {
	case unix.NLMSG_DONE:
		return true, false
	case unix.NLMSG_ERROR:
		if len(m.Data) >= 4 && int32(binary.LittleEndian.Uint32(m.Data[:4])) == 0 {
			return true, false
		}
		return true, true
	default:
		return false, true
	}
}

func (c *Conn) route(m syscall.NetlinkMessage) {
	seq := m.Header.Seq
	terminal, deliver := classifyDatagram(m)

	c.mu.Lock()
	ex, ok := c.pending[seq]
	if ok && terminal {
		delete(c.pending, seq)
	}
	c.mu.Unlock()

	if !ok {
		c.stats.UnroutableDatagrams.Inc()
		c.logger.Debug("datagram matched no pending exchange", "seq", seq, "type", m.Header.Type)
		return
	}

	if !deliver {
		if terminal {
			ex.finish()
		}
		return
	}

	select {
	case ex.ch <- m:
		if terminal {
			ex.finish()
		}
	default:
		// Consumer fell behind the buffer. End the exchange with an
		// overrun marker; the handle surfaces it as a protocol error.
		if !terminal {
			c.mu.Lock()
			delete(c.pending, seq)
			c.mu.Unlock()
		}
		c.stats.OverrunExchanges.Inc()
		c.logger.Warn("reply stream overrun", "seq", seq)
		if terminal {
			go ex.interrupt(m)
		} else {
			go ex.interrupt(overrunMessage(seq))
		}
	}
}

// failPending interrupts every outstanding exchange, used when the
// reader stops. The overrun marker keeps callers from mistaking the
// closed stream for a bare-ack success.
func (c *Conn) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint32]*exchange)
	c.mu.Unlock()
	for seq, ex := range pending {
		go ex.interrupt(overrunMessage(seq))
	}
}

func overrunMessage(seq uint32) syscall.NetlinkMessage {
	return syscall.NetlinkMessage{
		Header: syscall.NlMsghdr{Type: unix.NLMSG_OVERRUN, Seq: seq},
	}
}
