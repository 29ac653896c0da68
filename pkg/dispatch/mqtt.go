package dispatch

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker       string // host:port
	ClientID     string // generated when empty
	Username     string
	Password     string
	CommandTopic string
	// AckTopic is where the controller publishes replies. When empty the
	// broker's PUBACK for the command counts as the acknowledgment.
	AckTopic  string
	KeepAlive uint16
}

// MQTTTransport publishes instruction payloads to a broker topic the
// controller subscribes to.
type MQTTTransport struct {
	cfg MQTTConfig
}

var _ Transport = (*MQTTTransport)(nil)

// NewMQTTTransport creates an MQTT transport.
func NewMQTTTransport(cfg MQTTConfig) *MQTTTransport {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30
	}
	return &MQTTTransport{cfg: cfg}
}

// Endpoint returns mqtt://broker/topic.
func (t *MQTTTransport) Endpoint() string {
	return "mqtt://" + t.cfg.Broker + "/" + t.cfg.CommandTopic
}

// Connect opens a TCP connection to the broker, performs the MQTT handshake
// and subscribes to the ack topic.
func (t *MQTTTransport) Connect(ctx context.Context) (Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	clientID := t.cfg.ClientID
	if clientID == "" {
		clientID = "voicecmd-" + uuid.NewString()
	}

	s := &mqttSession{
		topic:    t.cfg.CommandTopic,
		ackTopic: t.cfg.AckTopic,
		replies:  make(chan []byte, 1),
		lost:     make(chan error, 1),
	}

	s.client = paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				if pr.Packet.Topic == s.ackTopic {
					s.reply(pr.Packet.Payload)
				}
				return true, nil
			},
		},
		OnClientError: s.lose,
		OnServerDisconnect: func(d *paho.Disconnect) {
			s.lose(fmt.Errorf("server disconnected with reason %d", d.ReasonCode))
		},
	})

	cp := &paho.Connect{
		ClientID:   clientID,
		CleanStart: true,
		KeepAlive:  t.cfg.KeepAlive,
	}
	if t.cfg.Username != "" {
		cp.Username = t.cfg.Username
		cp.UsernameFlag = true
	}
	if t.cfg.Password != "" {
		cp.Password = []byte(t.cfg.Password)
		cp.PasswordFlag = true
	}

	if _, err := s.client.Connect(ctx, cp); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	if s.ackTopic != "" {
		if _, err := s.client.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{
				{Topic: s.ackTopic, QoS: 1},
			},
		}); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("subscribe %s: %w", s.ackTopic, err)
		}
	}

	return s, nil
}

type mqttSession struct {
	client   *paho.Client
	topic    string
	ackTopic string

	replies chan []byte
	lost    chan error

	closeOnce sync.Once
}

func (s *mqttSession) reply(payload []byte) {
	select {
	case s.replies <- payload:
	default:
	}
}

func (s *mqttSession) lose(err error) {
	select {
	case s.lost <- err:
	default:
	}
}

func (s *mqttSession) Send(ctx context.Context, payload []byte) error {
	resp, err := s.client.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   s.topic,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if s.ackTopic == "" {
		s.reply([]byte(fmt.Sprintf("puback %d", resp.ReasonCode)))
	}
	return nil
}

func (s *mqttSession) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.replies:
		return data, nil
	case err := <-s.lost:
		return nil, fmt.Errorf("%w: %w", ErrClosedByPeer, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *mqttSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	})
	return err
}
