package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	Endpoint               string `yaml:"endpoint"`               // socket endpoint of the desktop service
	APIBase                string `yaml:"apiBase,omitempty"`      // REST base, only needed for validate/generate/cancel
	ConnectTimeoutMs       int    `yaml:"connectTimeoutMs"`       // guards the join handshake
	TransferTimeoutMs      int    `yaml:"transferTimeoutMs"`      // guards the file_uploaded ack
	MaxAttempts            int    `yaml:"maxAttempts"`            // shared by pairing and transfer
	InitialDelayMs         int    `yaml:"initialDelayMs"`         // first backoff delay, doubled after each failure
	MaxFileSizeBytes       int64  `yaml:"maxFileSizeBytes"`       // larger files never reach file-selection
	ControlPort            int    `yaml:"controlPort"`            // local control API, bound to loopback
	NotifySocket           string `yaml:"notifySocket,omitempty"` // unix socket for state notifications, empty disables
	ReconnectMinIntervalMs int    `yaml:"reconnectMinIntervalMs"` // 0 disables; foreground reconnects closer than this are dropped
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log             string
	UseConfigPath   string
	UseEndpoint     string
	UseApiBase      string
	UseRestValidate bool   // validate the code over REST first and dial the returned wsUrl
	Code            string // pairing code typed by the user
	Token           string // optional bearer token
	QRPayload       string // raw QR content, "<token>:<code>", validate-code URL or bare code
	File            string // path of the file to push after pairing
	Generate        bool   // desktop helper: ask the REST API for a new code and print it
	Serve           bool   // run the local control API instead of a one-shot transfer
	Probe           bool   // ICMP probe of the endpoint host, then exit
	SkipNotify      bool
}
