// Package config loads go-voicecmd configuration.
//
// Sources are layered: built-in defaults, an optional config file (YAML, TOML
// or JSON), then environment variables. A .env file in the working directory
// is loaded into the environment first. Environment keys use the VOICECMD_
// prefix with dots replaced by underscores (VOICECMD_ROBOT_ADDRESS), and the
// legacy GEMINI_API_KEY, GOOGLE_API_KEY and ROBOT_IP names are honored.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultRobotPort       = 80
	DefaultMQTTPort        = 1883
	DefaultConnectTimeout  = 5 * time.Second
	DefaultAckTimeout      = 1 * time.Second
	DefaultListenTimeout   = 5 * time.Second
	DefaultPhraseLimit     = 7 * time.Second
	DefaultAmbientDuration = 1 * time.Second
	DefaultLoopPause       = 1 * time.Second
	DefaultSampleRate      = 16000
)

// Oracle providers.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderGrammar = "grammar"
)

// Robot transports.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

var (
	// ErrMissingCredential is returned when a remote oracle has no API key.
	ErrMissingCredential = errors.New("config: missing oracle API key (set GEMINI_API_KEY or VOICECMD_ORACLE_API_KEY)")

	// ErrMissingRobotAddress is returned when no robot address is configured.
	ErrMissingRobotAddress = errors.New("config: missing robot address (set ROBOT_IP or VOICECMD_ROBOT_ADDRESS)")
)

// Config is the complete runtime configuration.
// It is built once at startup and handed to each component explicitly.
type Config struct {
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Robot   RobotConfig   `mapstructure:"robot"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	Loop    LoopConfig    `mapstructure:"loop"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// OracleConfig configures the text-to-command translation service.
type OracleConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	TopP            float64       `mapstructure:"top_p"`
	TopK            int           `mapstructure:"top_k"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SafetyThreshold string        `mapstructure:"safety_threshold"`

	// Fallback chains the offline grammar oracle behind the remote one.
	Fallback bool `mapstructure:"fallback"`
}

// RobotConfig configures delivery to the robot controller.
type RobotConfig struct {
	Address        string        `mapstructure:"address"`
	Port           int           `mapstructure:"port"`
	Path           string        `mapstructure:"path"`
	Transport      string        `mapstructure:"transport"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
	MQTT           MQTTConfig    `mapstructure:"mqtt"`
}

// MQTTConfig is used when Robot.Transport is "mqtt".
type MQTTConfig struct {
	Broker       string `mapstructure:"broker"`
	CommandTopic string `mapstructure:"command_topic"`
	AckTopic     string `mapstructure:"ack_topic"`
	ClientID     string `mapstructure:"client_id"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

// SpeechConfig configures capture and transcription.
type SpeechConfig struct {
	Backend         string        `mapstructure:"backend"`
	Device          string        `mapstructure:"device"`
	SampleRate      int           `mapstructure:"sample_rate"`
	ListenTimeout   time.Duration `mapstructure:"listen_timeout"`
	PhraseTimeLimit time.Duration `mapstructure:"phrase_time_limit"`
	AmbientDuration time.Duration `mapstructure:"ambient_duration"`
	VADMode         int           `mapstructure:"vad_mode"`
	Language        string        `mapstructure:"language"`
	APIKey          string        `mapstructure:"api_key"`
	CredentialsFile string        `mapstructure:"credentials_file"`
}

// LoopConfig configures the orchestration loop.
type LoopConfig struct {
	Pause time.Duration `mapstructure:"pause"`
}

// MetricsConfig configures the Prometheus exporter. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.provider", ProviderGemini)
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.model", "") // provider default
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("oracle.top_p", 0.95)
	v.SetDefault("oracle.top_k", 0)
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.timeout", 15*time.Second)
	v.SetDefault("oracle.safety_threshold", "BLOCK_NONE")
	v.SetDefault("oracle.fallback", false)

	v.SetDefault("robot.address", "")
	v.SetDefault("robot.port", DefaultRobotPort)
	v.SetDefault("robot.path", "/")
	v.SetDefault("robot.transport", TransportWebSocket)
	v.SetDefault("robot.connect_timeout", DefaultConnectTimeout)
	v.SetDefault("robot.ack_timeout", DefaultAckTimeout)
	v.SetDefault("robot.mqtt.broker", "")
	v.SetDefault("robot.mqtt.command_topic", "robot/commands")
	v.SetDefault("robot.mqtt.ack_topic", "robot/acks")
	v.SetDefault("robot.mqtt.client_id", "voicecmd")
	v.SetDefault("robot.mqtt.username", "")
	v.SetDefault("robot.mqtt.password", "")

	v.SetDefault("speech.backend", "auto")
	v.SetDefault("speech.device", "")
	v.SetDefault("speech.sample_rate", DefaultSampleRate)
	v.SetDefault("speech.listen_timeout", DefaultListenTimeout)
	v.SetDefault("speech.phrase_time_limit", DefaultPhraseLimit)
	v.SetDefault("speech.ambient_duration", DefaultAmbientDuration)
	v.SetDefault("speech.vad_mode", 2)
	v.SetDefault("speech.language", "en-US")
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.credentials_file", "")

	v.SetDefault("loop.pause", DefaultLoopPause)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, the optional file at path, and the
// environment. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VOICECMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	legacy := map[string][]string{
		"oracle.api_key": {"VOICECMD_ORACLE_API_KEY", "GEMINI_API_KEY"},
		"robot.address":  {"VOICECMD_ROBOT_ADDRESS", "ROBOT_IP"},
		"speech.api_key": {"VOICECMD_SPEECH_API_KEY", "GOOGLE_API_KEY"},
	}
	for key, envs := range legacy {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// ValidateOracle checks only what translation needs.
func (c *Config) ValidateOracle() error {
	switch c.Oracle.Provider {
	case ProviderGemini:
		if c.Oracle.APIKey == "" {
			return ErrMissingCredential
		}
	case ProviderOpenAI, ProviderGrammar:
		// API key is optional for local OpenAI-compatible servers
	default:
		return fmt.Errorf("config: unknown oracle provider %q", c.Oracle.Provider)
	}

	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		return fmt.Errorf("config: oracle temperature must be between 0 and 2, got %v", c.Oracle.Temperature)
	}
	if c.Oracle.TopP < 0 || c.Oracle.TopP > 1 {
		return fmt.Errorf("config: oracle top_p must be between 0 and 1, got %v", c.Oracle.TopP)
	}
	return nil
}

// ValidateRobot checks only what delivery needs.
func (c *Config) ValidateRobot() error {
	switch c.Robot.Transport {
	case TransportWebSocket:
		if c.Robot.Address == "" {
			return ErrMissingRobotAddress
		}
		if c.Robot.Port <= 0 || c.Robot.Port > 65535 {
			return fmt.Errorf("config: invalid robot port %d", c.Robot.Port)
		}
	case TransportMQTT:
		if c.Robot.MQTT.Broker == "" && c.Robot.Address == "" {
			return ErrMissingRobotAddress
		}
	default:
		return fmt.Errorf("config: unknown robot transport %q", c.Robot.Transport)
	}

	if c.Robot.AckTimeout <= 0 {
		return fmt.Errorf("config: ack timeout must be positive, got %v", c.Robot.AckTimeout)
	}
	if c.Robot.ConnectTimeout <= 0 {
		return fmt.Errorf("config: connect timeout must be positive, got %v", c.Robot.ConnectTimeout)
	}
	return nil
}

// Validate checks everything required for the continuous run mode.
func (c *Config) Validate() error {
	if err := c.ValidateOracle(); err != nil {
		return err
	}
	return c.ValidateRobot()
}

// WebSocketURL returns the controller endpoint, e.g. ws://192.168.4.1:80/.
func (c *Config) WebSocketURL() string {
	path := c.Robot.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	host := net.JoinHostPort(c.Robot.Address, strconv.Itoa(c.Robot.Port))
	return "ws://" + host + path
}

// MQTTBroker returns the broker host:port, defaulting to the robot address.
// A tcp:// or mqtt:// scheme on the configured broker is dropped.
func (c *Config) MQTTBroker() string {
	if b := c.Robot.MQTT.Broker; b != "" {
		for _, scheme := range []string{"tcp://", "mqtt://"} {
			b = strings.TrimPrefix(b, scheme)
		}
		if _, _, err := net.SplitHostPort(b); err != nil {
			b = net.JoinHostPort(b, strconv.Itoa(DefaultMQTTPort))
		}
		return b
	}
	return net.JoinHostPort(c.Robot.Address, strconv.Itoa(DefaultMQTTPort))
}
