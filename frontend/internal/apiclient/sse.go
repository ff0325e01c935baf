package apiclient

import (
	"bufio"
	"io"
	"strings"
)

// sseRecord is one server-sent event. Multiple data lines are joined with
// newlines.
type sseRecord struct {
	Type string
	Data string
}

// sseScanner reads server-sent events from a stream. Records end at a
// blank line. Comment lines and unknown fields are skipped.
type sseScanner struct {
	reader  *bufio.Reader
	current sseRecord
	err     error
}

func newSSEScanner(reader io.Reader) *sseScanner {
	return &sseScanner{reader: bufio.NewReaderSize(reader, 64*1024)}
}

// Next advances to the next record. It returns false at the end of the
// stream or on error, see Err.
func (s *sseScanner) Next() bool {
	s.current = sseRecord{}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF && hasData {
				s.current = sseRecord{Type: eventType, Data: strings.Join(dataLines, "\n")}
				s.err = io.EOF
				return true
			}
			s.err = err
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				s.current = sseRecord{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field, value = line, ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

func (s *sseScanner) Record() sseRecord {
	return s.current
}

// Err returns nil after a clean EOF.
func (s *sseScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
