//go:build !windows && !plan9

package sink

import (
	"fmt"
	"log/syslog"
)

// OpenSyslog connects to the local system log with the given tag.
func OpenSyslog(tag string) (*SyslogSink, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system log: %w", err)
	}
	return &SyslogSink{w: w}, nil
}
