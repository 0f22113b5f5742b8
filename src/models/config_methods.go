package models

// GetLogLevel returns the configured log level.
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

// GetLogFormat returns the configured log output format.
func (c *MConfig) GetLogFormat() string {
	if c == nil {
		return ""
	}
	return c.LogFormat
}
