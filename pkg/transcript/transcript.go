// Package transcript reads and writes one chat session as JSON lines: a
// header line describing the session, then one line per message.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/deepai/deepai-client/pkg/store"
)

const (
	Version = 1

	typeSession = "session"
	typeMessage = "message"

	maxLine = 4 << 20
)

// Header is the first line of a transcript.
type Header struct {
	Type     string        `json:"type"`
	Version  int           `json:"version"`
	Exported time.Time     `json:"exported"`
	Session  store.Session `json:"session"`
}

type entry struct {
	Type string `json:"type"`
	store.Message
}

// Write encodes sess and its messages to w.
func Write(w io.Writer, sess store.Session, msgs []store.Message, now time.Time) error {
	bw := bufio.NewWriter(w)
	if err := writeLine(bw, Header{Type: typeSession, Version: Version, Exported: now, Session: sess}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, m := range msgs {
		if err := writeLine(bw, entry{Type: typeMessage, Message: m}); err != nil {
			return fmt.Errorf("failed to write message %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Read decodes a transcript. Lines that are not messages are skipped, and
// messages lose their loading flag since no request survives an export.
func Read(r io.Reader) (Header, []store.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var h Header
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Header{}, nil, fmt.Errorf("failed to read header: %w", err)
		}
		return Header{}, nil, errors.New("empty transcript")
	}
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return Header{}, nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	if h.Type != typeSession {
		return Header{}, nil, fmt.Errorf("unexpected header type %q", h.Type)
	}
	if h.Version > Version {
		return Header{}, nil, fmt.Errorf("unsupported transcript version %d", h.Version)
	}

	msgs := []store.Message{}
	line := 1
	for scanner.Scan() {
		line++
		var e entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil || e.Type != typeMessage {
			slog.Warn("Skipping transcript line", "line", line, "error", err)
			continue
		}
		e.Message.Loading = false
		msgs = append(msgs, e.Message)
	}
	if err := scanner.Err(); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return h, msgs, nil
}
