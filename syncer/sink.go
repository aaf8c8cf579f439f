package syncer

import "fmt"

// LogSink receives human-readable progress lines. It is a secondary channel;
// the Outcome returned by Synchronize is the authoritative result.
type LogSink func(line string)

func (s LogSink) printf(format string, args ...any) {
	if s != nil {
		s(fmt.Sprintf(format, args...))
	}
}
