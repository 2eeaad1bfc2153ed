package hyperdeck

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Response is one framed reply or asynchronous block.
type Response struct {
	Code int
	Text string
	// Fields holds "key: value" body lines keyed by lower-cased key.
	Fields map[string]string
	// Lines holds every body line in order, including ones without a key.
	Lines []string
}

// Async reports whether the block is an unsolicited notification.
func (r Response) Async() bool {
	return r.Code >= 500 && r.Code < 600
}

// Failed reports whether the device rejected the command.
func (r Response) Failed() bool {
	return r.Code >= 100 && r.Code < 200
}

// Field returns a trimmed body field.
func (r Response) Field(key string) (string, bool) {
	value, ok := r.Fields[key]
	return value, ok
}

func readBlock(r *bufio.Reader) (Response, error) {
	header, err := readLine(r)
	for err == nil && header == "" {
		header, err = readLine(r)
	}
	if err != nil {
		return Response{}, err
	}
	resp, multiline, err := parseHeader(header)
	if err != nil {
		return Response{}, err
	}
	if !multiline {
		return resp, nil
	}
	for {
		line, err := readLine(r)
		if err != nil {
			return Response{}, err
		}
		if line == "" {
			return resp, nil
		}
		resp.Lines = append(resp.Lines, line)
		if key, value, ok := strings.Cut(line, ":"); ok {
			resp.Fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseHeader(header string) (Response, bool, error) {
	codeText, rest, _ := strings.Cut(header, " ")
	code, err := strconv.Atoi(codeText)
	if err != nil || len(codeText) != 3 {
		return Response{}, false, fmt.Errorf("malformed reply header %q", header)
	}
	rest = strings.TrimSpace(rest)
	multiline := strings.HasSuffix(rest, ":")
	text := strings.TrimSuffix(rest, ":")
	return Response{Code: code, Text: text, Fields: map[string]string{}}, multiline, nil
}
