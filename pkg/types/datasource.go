package types

import "fmt"

// DataSourceDescriptor identifies one database target. Descriptors are
// built once at startup from configuration (credentials already resolved)
// and are read-only afterwards; adding a data source requires a restart.
type DataSourceDescriptor struct {
	Name     string
	URL      string
	Username string
	Password string
	Driver   string
}

// String returns a redacted representation safe for logs
func (d DataSourceDescriptor) String() string {
	return fmt.Sprintf("DataSourceDescriptor{name=%s, driver=%s}", d.Name, d.Driver)
}
