package obsws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"streamcast/internal/core/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds encoder connection settings.
type Config struct {
	Address        string
	Password       string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	PingInterval   time.Duration
}

// Client is an obs-websocket v5 client implementing ports.EncoderControl.
// One read loop dispatches request replies to waiters and converts output
// events into domain.EncoderEvent values.
type Client struct {
	cfg    Config
	logger *zap.SugaredLogger

	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan requestReply

	events chan domain.EncoderEvent

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient builds an unconnected client; call Connect before use.
func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]chan requestReply),
		events:  make(chan domain.EncoderEvent, 16),
		closed:  make(chan struct{}),
	}
}

// Connect dials the encoder, performs the Hello/Identify handshake and starts
// the read loop. Subscribes to output events only.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		Subprotocols:     []string{subprotocol},
		HandshakeTimeout: c.cfg.ConnectTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.Address, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", domain.ErrEncoderUnavailable, c.cfg.Address, err)
	}
	c.conn = conn

	hello, err := c.readHello(ctx)
	if err != nil {
		conn.Close()
		return err
	}

	identify := identifyMessage{
		RPCVersion:         rpcVersion,
		EventSubscriptions: eventSubscriptionOutputs,
	}
	if hello.Authentication != nil {
		identify.Authentication = buildAuthResponse(c.cfg.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.writeEnvelope(opIdentify, identify); err != nil {
		conn.Close()
		return fmt.Errorf("identify: %w", err)
	}

	if err := c.readIdentified(ctx); err != nil {
		conn.Close()
		return err
	}

	go c.readLoop()
	if c.cfg.PingInterval > 0 {
		go c.pingLoop()
	}

	// Preflight: confirm the connection works and log what we talk to.
	if version, err := c.GetVersion(ctx); err == nil {
		c.logger.Infow("connected to encoder",
			"address", c.cfg.Address,
			"obs_version", version.ObsVersion,
			"websocket_version", version.ObsWebSocketVersion)
	} else {
		c.logger.Warnw("connected but version query failed", "error", err)
	}
	return nil
}

func (c *Client) readHello(ctx context.Context) (*helloMessage, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	}
	defer c.conn.SetReadDeadline(time.Time{})

	var env envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if env.Op != opHello {
		return nil, fmt.Errorf("expected hello (op %d), got op %d", opHello, env.Op)
	}
	var hello helloMessage
	if err := json.Unmarshal(env.D, &hello); err != nil {
		return nil, fmt.Errorf("decode hello: %w", err)
	}
	return &hello, nil
}

func (c *Client) readIdentified(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	}
	defer c.conn.SetReadDeadline(time.Time{})

	var env envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return fmt.Errorf("read identified: %w", err)
	}
	if env.Op != opIdentified {
		return fmt.Errorf("authentication rejected by encoder (op %d)", env.Op)
	}
	var identified identifiedMessage
	if err := json.Unmarshal(env.D, &identified); err != nil {
		return fmt.Errorf("decode identified: %w", err)
	}
	c.logger.Debugw("identified with encoder", "rpc_version", identified.NegotiatedRPCVersion)
	return nil
}

func (c *Client) writeEnvelope(op int, d interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(envelope{Op: op, D: mustMarshal(d)})
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All envelope payloads are plain structs; this cannot fail at runtime.
		panic(err)
	}
	return data
}

func (c *Client) readLoop() {
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Errorw("encoder connection read failed", "error", err)
			}
			c.failPending(err)
			close(c.events)
			return
		}

		switch env.Op {
		case opRequestReply:
			var reply requestReply
			if err := json.Unmarshal(env.D, &reply); err != nil {
				c.logger.Warnw("unparseable request reply, ignoring", "error", err)
				continue
			}
			c.dispatchReply(reply)

		case opEvent:
			if ev, ok := c.parseEvent(env.D); ok {
				select {
				case c.events <- ev:
				default:
					// The monitor latch is monotonic; dropping an event under
					// backpressure loses nothing the fallback poll won't find.
					c.logger.Debugw("event buffer full, dropping event", "kind", ev.Kind)
				}
			}
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warnw("encoder ping failed", "error", err)
			}
		}
	}
}

func (c *Client) dispatchReply(reply requestReply) {
	c.pendingMu.Lock()
	ch, ok := c.pending[reply.RequestID]
	if ok {
		delete(c.pending, reply.RequestID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- reply
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	_ = err
}

// request issues one RPC and waits for its reply.
func (c *Client) request(ctx context.Context, requestType string, data interface{}) (json.RawMessage, error) {
	if c.conn == nil {
		return nil, domain.ErrEncoderUnavailable
	}

	id := uuid.NewString()
	ch := make(chan requestReply, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeEnvelope(opRequest, requestMessage{
		RequestType: requestType,
		RequestID:   id,
		RequestData: data,
	}); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: send %s: %v", domain.ErrEncoderUnavailable, requestType, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s timed out", domain.ErrEncoderUnavailable, requestType)
	case reply, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: connection lost", domain.ErrEncoderUnavailable)
		}
		if !reply.RequestStatus.Result {
			return reply.ResponseData, &RequestError{
				RequestType: requestType,
				Code:        reply.RequestStatus.Code,
				Comment:     reply.RequestStatus.Comment,
			}
		}
		return reply.ResponseData, nil
	}
}

// RequestError is a non-OK RequestStatus from the encoder.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
}

// Close tears down the connection. The events channel closes once the read
// loop observes the closed socket.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Events implements ports.EncoderControl.
func (c *Client) Events() <-chan domain.EncoderEvent {
	return c.events
}
