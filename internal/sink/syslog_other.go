//go:build windows || plan9

package sink

// OpenSyslog always fails on this platform.
func OpenSyslog(tag string) (*SyslogSink, error) {
	return nil, ErrSyslogUnsupported
}
