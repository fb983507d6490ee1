package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Data stream line prefixes. Each line is "<prefix>:<json>\n".
const (
	StreamPrefixStart  = "f"
	StreamPrefixText   = "0"
	StreamPrefixFinish = "d"
	StreamPrefixError  = "3"
)

// StreamEvent is one decoded data stream line. Exactly one payload field is
// set, selected by Prefix.
type StreamEvent struct {
	Prefix string
	Start  *StreamStart
	Text   string
	Finish *StreamFinish
	Error  string
}

// ParseStreamLine decodes one data stream line.
func ParseStreamLine(line string) (StreamEvent, error) {
	line = strings.TrimRight(line, "\r\n")
	prefix, payload, ok := strings.Cut(line, ":")
	if !ok {
		return StreamEvent{}, fmt.Errorf("stream line has no prefix: %q", line)
	}

	event := StreamEvent{Prefix: prefix}
	var err error
	switch prefix {
	case StreamPrefixStart:
		event.Start = &StreamStart{}
		err = json.Unmarshal([]byte(payload), event.Start)
	case StreamPrefixText:
		err = json.Unmarshal([]byte(payload), &event.Text)
	case StreamPrefixFinish:
		event.Finish = &StreamFinish{}
		err = json.Unmarshal([]byte(payload), event.Finish)
	case StreamPrefixError:
		err = json.Unmarshal([]byte(payload), &event.Error)
	default:
		return StreamEvent{}, fmt.Errorf("unknown stream prefix %q", prefix)
	}
	if err != nil {
		return StreamEvent{}, fmt.Errorf("decode %s payload: %w", prefix, err)
	}
	return event, nil
}
