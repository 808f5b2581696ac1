package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/mudpie/test"
	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		record := make(map[string]any)
		test.RequireNoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}
	return records
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.LogRequest(RequestLog{ID: "abc", Method: "get", Path: "/x", Code: 404, BodyLength: 3, Duration: time.Millisecond})
	logger.LogReadError(&IOError{Err: ErrConnectionClosed})

	req := mustParse(t, "GET /panic HTTP/1.1\r\n\r\n")
	logger.LogHandlerPanic(req, "boom", []byte("stack"))
	logger.LogHandlerPanic(req, nil, nil)
	logger.LogWorkerExit(WorkerExit{Worker: 3, Panic: "x"})

	records := decodeLines(t, &buf)
	if !test.AssertEqual(t, 5, len(records)) {
		return
	}
	test.AssertEqual(t, any("request"), records[0]["msg"])
	test.AssertEqual(t, any("/x"), records[0]["path"])
	test.AssertEqual(t, any(float64(404)), records[0]["code"])

	test.AssertEqual(t, any("WARN"), records[1]["level"])

	test.AssertEqual(t, any("handler panicked"), records[2]["msg"])
	test.AssertEqual(t, any("boom"), records[2]["panic"])
	test.AssertEqual(t, any("/panic"), records[2]["path"])

	test.AssertEqual(t, any("handler exited without returning"), records[3]["msg"])

	test.AssertEqual(t, any("worker 3 panicked: x"), records[4]["exit"])
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := ZerologLogger{Logger: zerolog.New(&buf)}

	logger.LogRequest(RequestLog{ID: "abc", Method: "post", Path: "/form", Code: 200, BodyLength: 10})
	logger.LogAcceptError(errors.New("too many open files"))
	req := mustParse(t, "GET /panic HTTP/1.1\r\n\r\n")
	logger.LogHandlerPanic(req, nil, nil)

	records := decodeLines(t, &buf)
	if !test.AssertEqual(t, 3, len(records)) {
		return
	}
	test.AssertEqual(t, any("request"), records[0]["message"])
	test.AssertEqual(t, any("post"), records[0]["method"])
	test.AssertEqual(t, any(float64(200)), records[0]["code"])

	test.AssertEqual(t, any("error"), records[1]["level"])
	test.AssertEqual(t, any("too many open files"), records[1]["error"])

	test.AssertEqual(t, any("handler exited without returning"), records[2]["message"])
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	logger.LogRequest(RequestLog{})
	logger.LogWorkerExit(WorkerExit{})
}
