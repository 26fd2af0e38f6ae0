package openflow

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/michaelzhou24/openflow-nat/nat"
)

// PacketHandler consumes decoded packet-in events. Satisfied by
// *nat.Engine.
type PacketHandler interface {
	ProcessPacketIn(switchID uint64, ingressPort uint32, frame []byte)
}

// packetIn is one decoded packet-in event queued for the dispatch
// loop.
type packetIn struct {
	switchID    uint64
	ingressPort uint32
	frame       []byte
}

// Controller accepts switch connections, runs the OpenFlow handshake
// on each, and funnels every packet-in into a single dispatch
// goroutine so the engine stays single-threaded. It implements
// nat.Transport.
type Controller struct {
	// Handler receives packet-in events. Set before ListenAndServe.
	Handler PacketHandler

	mu       sync.Mutex
	switches map[uint64]*conn

	events chan packetIn
}

type conn struct {
	id   string // connection uuid, for logs
	sock net.Conn
	xid  atomic.Uint32

	writeMu sync.Mutex
}

func NewController() *Controller {
	return &Controller{
		switches: map[uint64]*conn{},
		events:   make(chan packetIn, 256),
	}
}

// ListenAndServe accepts switch connections on addr until ctx is
// canceled.
func (c *Controller) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer ln.Close()

	go c.dispatch(ctx)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Infof("Listening for switches on %s", addr)
	for {
		sock, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting switch connection: %w", err)
		}
		go c.serve(sock)
	}
}

// dispatch delivers packet-in events to the handler one at a time.
// This is the engine's event loop: parked frames are resumed here too,
// since ARP replies arrive as ordinary packet-ins.
func (c *Controller) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.Handler.ProcessPacketIn(ev.switchID, ev.ingressPort, ev.frame)
		}
	}
}

// serve runs the handshake and read loop for one switch connection.
func (c *Controller) serve(sock net.Conn) {
	cn := &conn{
		id:   uuid.New().String(),
		sock: sock,
	}
	logger := log.WithFields(log.Fields{
		"conn":   cn.id,
		"remote": sock.RemoteAddr(),
	})
	logger.Info("Switch connected")

	var switchID uint64
	registered := false
	defer func() {
		sock.Close()
		if registered {
			c.unregister(switchID)
		}
		logger.Info("Switch disconnected")
	}()

	if err := cn.write(TypeHello, nil); err != nil {
		logger.Errorf("Sending hello: %s", err)
		return
	}

	for {
		hdr, body, err := ReadMessage(sock)
		if err != nil {
			logger.Debugf("Read failed: %s", err)
			return
		}

		switch hdr.Type {
		case TypeHello:
			if err := cn.write(TypeFeaturesRequest, nil); err != nil {
				logger.Errorf("Sending features request: %s", err)
				return
			}

		case TypeEchoRequest:
			if err := cn.writeXid(TypeEchoReply, hdr.Xid, body); err != nil {
				logger.Errorf("Sending echo reply: %s", err)
				return
			}

		case TypeFeaturesReply:
			switchID, err = ParseFeaturesReply(body)
			if err != nil {
				logger.Errorf("Bad features reply: %s", err)
				return
			}
			c.register(switchID, cn)
			registered = true
			logger = logger.WithField("switch", fmt.Sprintf("%#x", switchID))
			logger.Info("Handshake complete")

		case TypePacketIn:
			if !registered {
				logger.Warn("Packet-in before features reply, ignoring")
				continue
			}
			inPort, frame, err := ParsePacketIn(body)
			if err != nil {
				logger.Debugf("Bad packet-in: %s", err)
				continue
			}
			// Copy out of the read buffer: the frame may be parked in
			// the resolution queue long after this iteration.
			c.events <- packetIn{
				switchID:    switchID,
				ingressPort: inPort,
				frame:       append([]byte(nil), frame...),
			}

		case TypeError:
			logger.Warnf("Switch reported error: %x", body)
		}
	}
}

func (c *Controller) register(switchID uint64, cn *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switches[switchID] = cn
}

func (c *Controller) unregister(switchID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.switches, switchID)
}

func (c *Controller) lookup(switchID uint64) (*conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cn, ok := c.switches[switchID]
	if !ok {
		return nil, fmt.Errorf("no connection for switch %#x", switchID)
	}
	return cn, nil
}

// SendFrame implements nat.Transport.
func (c *Controller) SendFrame(switchID uint64, ingressPort, outPort uint32, actions []nat.Action, frame []byte) error {
	cn, err := c.lookup(switchID)
	if err != nil {
		return err
	}
	return cn.write(TypePacketOut, EncodePacketOut(ingressPort, outPort, actions, frame))
}

// InstallRule implements nat.Transport.
func (c *Controller) InstallRule(switchID uint64, match nat.Match, actions []nat.Action) error {
	cn, err := c.lookup(switchID)
	if err != nil {
		return err
	}
	return cn.write(TypeFlowMod, EncodeFlowMod(match, actions))
}

func (cn *conn) write(msgType uint8, body []byte) error {
	return cn.writeXid(msgType, cn.xid.Add(1), body)
}

func (cn *conn) writeXid(msgType uint8, xid uint32, body []byte) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	_, err := cn.sock.Write(Encode(msgType, xid, body))
	return err
}
