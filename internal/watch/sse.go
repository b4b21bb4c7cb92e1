package watch

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxEventBytes bounds one SSE line; snapshots of large tables arrive as a single data line.
const maxEventBytes = 16 << 20

// Event is one dispatched Server-Sent Event.
type Event struct {
	Name string
	ID   string
	Data []byte
}

// readEvents parses an event stream and calls fn for each complete event.
// Comment lines are skipped. It returns fn's first error, or the reader's.
func readEvents(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventBytes)

	var (
		cur     Event
		data    bytes.Buffer
		hasData bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if hasData || cur.Name != "" {
				cur.Data = bytes.Clone(data.Bytes())
				if err := fn(cur); err != nil {
					return err
				}
			}
			cur = Event{}
			data.Reset()
			hasData = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.Name = value
		case "id":
			cur.ID = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
