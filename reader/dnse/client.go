package dnse

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vnflow/auth"
	appconfig "vnflow/config"
	"vnflow/logger"
	"vnflow/models"
	"vnflow/writer"
)

// Client owns one subscription session against the datafeed broker. It
// validates every pushed tick and appends the valid ones to the sink,
// recovering from transient disconnects with bounded exponential backoff.
//
// All broker callbacks run sequentially on the transport's receive loop, so
// only the connection state and the exit flag are shared with the driver,
// both through atomics.
type Client struct {
	feed    appconfig.FeedConfig
	rc      appconfig.ReconnectConfig
	session auth.Session
	sink    writer.Sink
	log     *logger.Log

	clientID string
	conn     Conn
	state    atomic.Int32
	exit     atomic.Bool

	// sleep is swapped out by tests to observe the backoff schedule.
	sleep func(time.Duration)
}

// NewClient builds a client for the configured feed. The session must come
// from a successful auth.Login; the sink receives every validated tick.
func NewClient(cfg *appconfig.Config, session auth.Session, sink writer.Sink) *Client {
	c := &Client{
		feed:     cfg.Feed,
		rc:       cfg.Reconnect,
		session:  session,
		sink:     sink,
		log:      logger.GetLogger(),
		clientID: fmt.Sprintf("%s-%s", cfg.Feed.ClientIDPrefix, uuid.New().String()),
		sleep:    time.Sleep,
	}
	c.state.Store(int32(StateDisconnected))
	c.conn = dialConn(cfg.Feed, session, c.clientID, c.handleConnectionLost)
	return c
}

// Connect establishes the broker connection and subscribes to all configured
// topics. A refused or unreachable broker at this point is fatal: no
// reconnection is attempted before the first successful connect.
func (c *Client) Connect() error {
	log := c.log.WithComponent("dnse_client").WithFields(logger.Fields{
		"broker":    c.feed.Broker,
		"client_id": c.clientID,
	})

	c.state.Store(int32(StateConnecting))
	log.Info("connecting to datafeed broker")

	if err := c.conn.Connect(); err != nil {
		c.state.Store(int32(StateDisconnected))
		log.WithError(err).Error("failed to connect to broker")
		return fmt.Errorf("connect to broker: %w", err)
	}

	c.state.Store(int32(StateConnected))
	log.Info("connected to datafeed broker")

	if err := c.subscribe(); err != nil {
		log.WithError(err).Error("failed to subscribe to topics")
	}
	return nil
}

// Disconnect closes the session cleanly. The connection-lost handler does
// not fire for an explicit disconnect.
func (c *Client) Disconnect() {
	c.conn.Disconnect(250 * time.Millisecond)
	c.state.Store(int32(StateDisconnected))
	c.log.WithComponent("dnse_client").Info("disconnected from datafeed broker")
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// ExitRequested reports whether the reconnect budget has been exhausted. The
// driver polls this between iterations and shuts the process down; the
// client never exits on its own.
func (c *Client) ExitRequested() bool {
	return c.exit.Load()
}

// subscribe issues a single subscribe request covering every configured
// topic filter at the configured QoS level.
func (c *Client) subscribe() error {
	filters := make(map[string]byte, len(c.feed.Topics))
	for _, topic := range c.feed.Topics {
		filters[topic] = c.feed.QoS
	}

	if err := c.conn.Subscribe(filters, c.handleMessage); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	c.log.WithComponent("dnse_client").WithFields(logger.Fields{
		"topics": c.feed.Topics,
		"qos":    c.feed.QoS,
	}).Info("subscribed to topics")
	return nil
}

// handleMessage validates one pushed tick and appends it to the sink. A
// malformed message is dropped with a single error log; nothing here ever
// propagates back to the transport, so one bad payload cannot take down the
// session.
func (c *Client) handleMessage(topic string, payload []byte) {
	log := c.log.WithComponent("dnse_client").WithFields(logger.Fields{"topic": topic})

	tick, err := models.ParseTick(payload)
	if err != nil {
		logger.IncrementTickDropped()
		var fieldErr *models.FieldError
		if errors.As(err, &fieldErr) {
			log.WithFields(logger.Fields{
				"field":  fieldErr.Field,
				"reason": fieldErr.Reason,
			}).Error("invalid tick, skipping")
		} else {
			log.WithError(err).Error("undecodable tick payload, skipping")
		}
		return
	}

	if err := c.sink.Append(tick); err != nil {
		logger.IncrementTickDropped()
		log.WithError(err).WithFields(logger.Fields{"symbol": tick.Symbol}).Error("failed to append tick to sink")
		return
	}

	logger.IncrementTickAccepted()
	log.WithFields(logger.Fields{
		"symbol": tick.Symbol,
		"price":  tick.MatchPrice,
		"qty":    tick.MatchQtty,
	}).Debug("tick recorded")
}

// handleConnectionLost runs the reconnection state machine after an
// unplanned disconnect: bounded exponential backoff with a hard delay
// ceiling. The attempt counter is local, so it resets on every new
// disconnect. Exhausting the budget marks the session Failed and raises the
// exit flag instead of terminating the process.
func (c *Client) handleConnectionLost(cause error) {
	log := c.log.WithComponent("dnse_client")
	log.WithError(cause).Info("connection to broker lost")

	c.state.Store(int32(StateReconnecting))

	attempts := 0
	delay := c.rc.FirstDelay
	for attempts < c.rc.MaxAttempts {
		log.WithFields(logger.Fields{
			"delay":   delay.String(),
			"attempt": attempts + 1,
		}).Info("reconnecting after delay")
		c.sleep(delay)

		logger.IncrementReconnectAttempt()
		if err := c.conn.Connect(); err != nil {
			log.WithError(err).Error("reconnect failed, retrying")
			attempts++
			delay = c.nextDelay(delay)
			continue
		}

		if err := c.subscribe(); err != nil {
			log.WithError(err).Error("failed to resubscribe after reconnect")
		}
		c.state.Store(int32(StateConnected))
		log.Info("reconnected successfully")
		return
	}

	c.state.Store(int32(StateFailed))
	c.exit.Store(true)
	log.WithFields(logger.Fields{"attempts": attempts}).Error("reconnect budget exhausted, requesting shutdown")
}

// nextDelay doubles (per the configured rate) the backoff delay, clamped to
// the configured ceiling.
func (c *Client) nextDelay(delay time.Duration) time.Duration {
	delay *= time.Duration(c.rc.Rate)
	if delay > c.rc.MaxDelay {
		delay = c.rc.MaxDelay
	}
	return delay
}
