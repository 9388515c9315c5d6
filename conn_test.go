// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package auditlink

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"grimm.is/auditlink/internal/logging"
	"grimm.is/auditlink/internal/metrics"
	"grimm.is/auditlink/internal/testutil"
)

func TestClassifyDatagram(t *testing.T) {
	cases := []struct {
		name     string
		msg      syscall.NetlinkMessage
		terminal bool
		deliver  bool
	}{
		{"dump item", syscall.NetlinkMessage{Header: syscall.NlMsghdr{Type: msgListRules}}, false, true},
		{"done", syscall.NetlinkMessage{Header: syscall.NlMsghdr{Type: unix.NLMSG_DONE}}, true, false},
		{"bare ack", errorMessage(0, nil), true, false},
		{"rejection", errorMessage(-int32(unix.EPERM), nil), true, true},
		{"truncated error", syscall.NetlinkMessage{Header: syscall.NlMsghdr{Type: unix.NLMSG_ERROR}}, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			terminal, deliver := classifyDatagram(tc.msg)
			require.Equal(t, tc.terminal, terminal, "terminal")
			require.Equal(t, tc.deliver, deliver, "deliver")
		})
	}
}

func TestOverrunMessage(t *testing.T) {
	m := overrunMessage(42)
	require.Equal(t, uint16(unix.NLMSG_OVERRUN), m.Header.Type)
	require.Equal(t, uint32(42), m.Header.Seq)

	terminal, deliver := classifyDatagram(m)
	require.False(t, terminal)
	require.True(t, deliver, "the marker must reach the consumer as a protocol error")
}

// testConn builds a Conn with correlation state but no socket; route
// and watch never touch the descriptor.
func testConn() *Conn {
	return &Conn{
		logger:     logging.Default().WithComponent("conn"),
		stats:      metrics.Default(),
		pending:    make(map[uint32]*exchange),
		readerDone: make(chan struct{}),
	}
}

func registerExchange(c *Conn, seq uint32) *exchange {
	ex := &exchange{
		ch:        make(chan syscall.NetlinkMessage, exchangeDepth),
		abandoned: make(chan struct{}),
		completed: make(chan struct{}),
	}
	c.mu.Lock()
	c.pending[seq] = ex
	c.mu.Unlock()
	return ex
}

func dumpItem(seq uint32) syscall.NetlinkMessage {
	return syscall.NetlinkMessage{Header: syscall.NlMsghdr{Type: msgListRules, Seq: seq}}
}

func doneMessage(seq uint32) syscall.NetlinkMessage {
	return syscall.NetlinkMessage{Header: syscall.NlMsghdr{Type: unix.NLMSG_DONE, Seq: seq}}
}

func TestRouteKeepsExchangesSeparate(t *testing.T) {
	c := testConn()
	first := registerExchange(c, 7)
	second := registerExchange(c, 8)

	// Interleave two dumps the way the kernel may deliver them.
	c.route(dumpItem(7))
	c.route(dumpItem(8))
	c.route(doneMessage(8))
	c.route(doneMessage(7))

	for _, tc := range []struct {
		seq uint32
		ex  *exchange
	}{{7, first}, {8, second}} {
		m, ok := <-tc.ex.ch
		require.True(t, ok)
		require.Equal(t, tc.seq, m.Header.Seq, "exchange received a foreign datagram")
		_, ok = <-tc.ex.ch
		require.False(t, ok, "stream should close after its own NLMSG_DONE")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Empty(t, c.pending)
}

func TestRouteDropsUnsolicitedDatagram(t *testing.T) {
	c := testConn()
	ex := registerExchange(c, 7)

	// Event traffic carries a sequence no exchange registered.
	c.route(dumpItem(99))
	c.route(doneMessage(99))

	select {
	case m := <-ex.ch:
		t.Fatalf("unsolicited datagram reached a live exchange: seq %d", m.Header.Seq)
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Contains(t, c.pending, uint32(7))
}

func TestWatchReleasesAbandonedExchange(t *testing.T) {
	c := testConn()
	ex := registerExchange(c, 7)

	ctx, cancel := context.WithCancel(context.Background())
	go c.watch(ctx, 7, ex)
	cancel()

	select {
	case <-ex.abandoned:
	case <-time.After(time.Second):
		t.Fatal("cancelled exchange was not abandoned")
	}

	c.mu.Lock()
	_, ok := c.pending[7]
	c.mu.Unlock()
	require.False(t, ok, "cancellation must release the correlation slot")

	// Late replies for the released sequence are dropped, not delivered.
	c.route(dumpItem(7))
	select {
	case <-ex.ch:
		t.Fatal("late reply reached an abandoned exchange")
	default:
	}
}

func TestWatchStopsOnCompletion(t *testing.T) {
	c := testConn()
	ex := registerExchange(c, 7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.watch(ctx, 7, ex)
		close(done)
	}()

	c.route(doneMessage(7))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after the exchange completed")
	}
	cancel()

	select {
	case <-ex.abandoned:
		t.Fatal("completed exchange must not be marked abandoned")
	default:
	}
}

// The remaining tests talk to the real audit subsystem and need root
// plus CAP_AUDIT_CONTROL; they are skipped unless the kernel test gate
// is set.

func TestConnGetStatus(t *testing.T) {
	testutil.RequireKernel(t)

	h, conn, err := Open(nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := h.GetStatus(ctx)
	require.NoError(t, err)
	require.LessOrEqual(t, status.Enabled, uint32(2))
}

func TestConnRuleLifecycle(t *testing.T) {
	testutil.RequireKernel(t)

	h, conn, err := Open(nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rule := NewRule(FilterExit, ActionAlways)
	rule.Syscalls.SelectAll()
	rule.WatchPath("/tmp/auditlink-test-lifecycle")
	rule.Key("auditlink-test")

	require.NoError(t, h.AddRule(ctx, rule))
	defer h.DeleteRule(context.Background(), rule)

	found := false
	for got, err := range h.ListRules(ctx) {
		require.NoError(t, err)
		if len(got.Fields) == len(rule.Fields) && got.Filter == rule.Filter {
			a, _ := got.MarshalBinary()
			b, _ := rule.MarshalBinary()
			if string(a) == string(b) {
				found = true
			}
		}
	}
	require.True(t, found, "installed rule should round-trip through the kernel")

	require.NoError(t, h.DeleteRule(ctx, rule))
}

func TestConnCloseIdempotent(t *testing.T) {
	testutil.RequireKernel(t)

	conn, err := Dial(nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err = conn.Exchange(context.Background(), newGetStatusRequest())
	require.Error(t, err)
}
