package dnse

import (
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"vnflow/auth"
	appconfig "vnflow/config"
)

// MessageHandler receives one inbound broker message.
type MessageHandler func(topic string, payload []byte)

// Conn is the broker transport used by the client. The production
// implementation speaks MQTT over a secure websocket; tests substitute a
// fake through the dialConn hook.
type Conn interface {
	// Connect blocks until the broker acknowledges the connection or
	// refuses it. A refusal surfaces as a non-nil error.
	Connect() error
	// Subscribe issues one subscribe request covering all topic filters at
	// the given QoS levels.
	Subscribe(filters map[string]byte, handler MessageHandler) error
	// Disconnect closes the connection, waiting up to quiesce for
	// in-flight work.
	Disconnect(quiesce time.Duration)
}

// dialConn creates the transport for a session. Overridable in tests.
var dialConn = newPahoConn

type pahoConn struct {
	client mqtt.Client
}

func newPahoConn(cfg appconfig.FeedConfig, session auth.Session, clientID string, onLost func(error)) Conn {
	broker := fmt.Sprintf("wss://%s:%d%s", cfg.Broker, cfg.Port, cfg.Path)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(session.InvestorID).
		SetPassword(session.Token).
		SetKeepAlive(cfg.KeepAlive).
		SetCleanSession(true).
		// The reconnection state machine is owned by the client, not the
		// library.
		SetAutoReconnect(false).
		SetConnectTimeout(30 * time.Second).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { onLost(err) })

	return &pahoConn{client: mqtt.NewClient(opts)}
}

func (p *pahoConn) Connect() error {
	token := p.client.Connect()
	token.Wait()
	return token.Error()
}

func (p *pahoConn) Subscribe(filters map[string]byte, handler MessageHandler) error {
	token := p.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (p *pahoConn) Disconnect(quiesce time.Duration) {
	p.client.Disconnect(uint(quiesce.Milliseconds()))
}
