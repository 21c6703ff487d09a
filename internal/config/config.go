package config

import "time"

// Config is the root configuration for a relay instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Backplane BackplaneConfig `yaml:"backplane"`
	Database  DatabaseConfig  `yaml:"database"`
	Signaling SignalingConfig `yaml:"signaling"`
	Writers   WritersConfig   `yaml:"writers"`
	LogBuffer LogBufferConfig `yaml:"log_buffer"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this relay instance.
type InstanceConfig struct {
	// ID tags bridge events and log records. Defaults to a random
	// UUID, which is fine for anything except stable dashboards.
	ID string `yaml:"id"`
}

// ServerConfig holds the WebSocket/HTTP listener settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBufferSize int           `yaml:"send_buffer_size"`
}

// BackplaneConfig holds fanout bridge settings. Requires the database
// to be enabled; the bridge rides Postgres LISTEN/NOTIFY.
type BackplaneConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Channel            string        `yaml:"channel"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// DatabaseConfig holds the Postgres connection used by the persistence
// writers and the backplane.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SignalingConfig holds the peer-signaling session manager settings.
type SignalingConfig struct {
	Enabled    bool              `yaml:"enabled"`
	ICEServers []ICEServerConfig `yaml:"ice_servers"`
}

// ICEServerConfig describes one STUN/TURN server advertised to peers.
type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

// WritersConfig holds batch writer settings for the persistence store.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// LogBufferConfig holds the retained log ring settings.
type LogBufferConfig struct {
	Capacity int `yaml:"capacity"`
}

// MetricsConfig holds the periodic stats reporter settings.
type MetricsConfig struct {
	ReportInterval time.Duration `yaml:"report_interval"`
}
