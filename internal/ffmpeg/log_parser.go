package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from a line of ffmpeg stderr written
// with -loglevel level+X. Lines look like "[warning] message" or
// "[swscaler @ 0x...] [warning] message"; the component prefix is kept and
// only the level tag is stripped. Unknown lines are reported at info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if tag := line[1:end]; isLogLevel(tag) {
		return tag, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
