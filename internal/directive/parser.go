// Package directive parses the three-line routing header at the top of a
// function source file:
//
//	# API_GATEWAY <gateway_id>
//	# <METHOD> </path>
//	# LAMBDA <function_name>
package directive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kholmgren/faas-gateway-deployer/internal"
)

const (
	DefaultMarker = "#"

	gatewayTag  = "API_GATEWAY"
	functionTag = "LAMBDA"
	headerLines = 3
)

// ErrInvalidHeader is wrapped by every parse failure.
var ErrInvalidHeader = errors.New("invalid file top")

var methods = map[string]bool{
	"GET":     true,
	"PUT":     true,
	"POST":    true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Parser reads route directives. The zero value uses DefaultMarker.
type Parser struct {
	Marker string
}

// ParseFile parses the header of the file at path.
func (p Parser) ParseFile(path string) (internal.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return internal.Route{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return p.Parse(path, f)
}

// Parse reads the first three lines of r. name is used as the route's
// source file and in error messages.
func (p Parser) Parse(name string, r io.Reader) (internal.Route, error) {
	lines, err := readHeader(r)
	if err != nil {
		return internal.Route{}, fmt.Errorf("read %s: %w", name, err)
	}

	fail := func(reason string) (internal.Route, error) {
		return internal.Route{}, &HeaderError{
			File:   name,
			Header: strings.Join(lines, "\n"),
			Reason: reason,
			marker: p.marker(),
		}
	}

	if len(lines) < headerLines {
		return fail(fmt.Sprintf("expected %d header lines, found %d", headerLines, len(lines)))
	}

	var fields [headerLines][]string
	for i, line := range lines {
		fields[i] = strings.Fields(line)
		if len(fields[i]) != 3 {
			return fail(fmt.Sprintf("line %d: expected 3 tokens, found %d", i+1, len(fields[i])))
		}
		if fields[i][0] != p.marker() {
			return fail(fmt.Sprintf("line %d: expected comment marker %q, found %q", i+1, p.marker(), fields[i][0]))
		}
	}

	if fields[0][1] != gatewayTag {
		return fail(fmt.Sprintf("line 1: expected %s, found %q", gatewayTag, fields[0][1]))
	}
	if !methods[strings.ToUpper(fields[1][1])] {
		return fail(fmt.Sprintf("line 2: unsupported HTTP method %q", fields[1][1]))
	}
	if !strings.HasPrefix(fields[1][2], "/") {
		return fail(fmt.Sprintf("line 2: path %q must start with /", fields[1][2]))
	}
	if fields[2][1] != functionTag {
		return fail(fmt.Sprintf("line 3: expected %s, found %q", functionTag, fields[2][1]))
	}

	return internal.Route{
		GatewayID:  fields[0][2],
		Method:     fields[1][1],
		Path:       fields[1][2],
		Function:   fields[2][2],
		SourceFile: name,
	}, nil
}

func (p Parser) marker() string {
	if p.Marker == "" {
		return DefaultMarker
	}
	return p.Marker
}

func readHeader(r io.Reader) ([]string, error) {
	var lines []string
	s := bufio.NewScanner(r)
	for len(lines) < headerLines && s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines, s.Err()
}

// HeaderError describes a malformed directive header.
type HeaderError struct {
	File   string
	Header string
	Reason string

	marker string
}

func (e *HeaderError) Error() string {
	m := e.marker
	if m == "" {
		m = DefaultMarker
	}
	return fmt.Sprintf(
		"file %s has an invalid file top (%s)!\n\n%s\n\nAll source files should start with:\n"+
			"%[4]s %[5]s <gateway_id>\n%[4]s <METHOD> </path>\n%[4]s %[6]s <lambda_name>\n",
		e.File, e.Reason, e.Header, m, gatewayTag, functionTag)
}

func (e *HeaderError) Unwrap() error {
	return ErrInvalidHeader
}
