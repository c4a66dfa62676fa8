package types

import "time"

// AppConfig is the root configuration for the report gateway
type AppConfig struct {
	DebugMode  bool `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool `key:"prettyLogs" json:"pretty_logs"`

	Gateway    GatewayConfig               `key:"gateway" json:"gateway"`
	Reports    ReportsConfig               `key:"reports" json:"reports"`
	DataSource map[string]DataSourceConfig `key:"datasource" json:"datasource"`
}

type GatewayConfig struct {
	HTTP HTTPConfig `key:"http" json:"http"`
}

type HTTPConfig struct {
	Host             string `key:"host" json:"host"`
	Port             int    `key:"port" json:"port"`
	EnablePrettyLogs bool   `key:"enablePrettyLogs" json:"enable_pretty_logs"`
}

// ReportsConfig configures template discovery and compilation
type ReportsConfig struct {
	// WritablePath is the optional filesystem location for development
	// hot-reload and uploads. Empty disables uploads; bundled templates
	// are still served.
	WritablePath string `key:"writablePath" json:"writable_path"`

	// ScanInterval is the background rescan period
	ScanInterval time.Duration `key:"scanInterval" json:"scan_interval"`

	// CacheSize bounds the compiled artifact cache (entries)
	CacheSize int `key:"cacheSize" json:"cache_size"`

	// DefaultFormat is the export format used when a request does not
	// specify one (csv or html)
	DefaultFormat string `key:"defaultFormat" json:"default_format"`
}

// DataSourceConfig is one entry under datasource.<name> in the flat
// configuration mapping. Values may contain ${VAR} / ${VAR:default}
// placeholders resolved at descriptor-load time.
type DataSourceConfig struct {
	URL      string `key:"url" json:"url"`
	Username string `key:"username" json:"username"`
	Password string `key:"password" json:"password"`
	Driver   string `key:"driver" json:"driver"`
}
