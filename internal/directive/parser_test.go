package directive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholmgren/faas-gateway-deployer/internal"
)

func TestParse_WellFormed(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   internal.Route
	}{
		{
			name:   "get",
			header: "# API_GATEWAY api1\n# GET /items\n# LAMBDA itemsFn\n\ndef lambda_handler(event, context):\n    pass\n",
			want:   internal.Route{GatewayID: "api1", Method: "GET", Path: "/items", Function: "itemsFn", SourceFile: "items.py"},
		},
		{
			name:   "lower case method kept literally",
			header: "# API_GATEWAY abc123\n# post /items/{id}\n# LAMBDA createItem\n",
			want:   internal.Route{GatewayID: "abc123", Method: "post", Path: "/items/{id}", Function: "createItem", SourceFile: "items.py"},
		},
		{
			name:   "extra whitespace between tokens",
			header: "#   API_GATEWAY\tapi1\n#  DELETE   /\n# LAMBDA   rootFn   \n",
			want:   internal.Route{GatewayID: "api1", Method: "DELETE", Path: "/", Function: "rootFn", SourceFile: "items.py"},
		},
		{
			name:   "no trailing newline",
			header: "# API_GATEWAY api1\n# PUT /a\n# LAMBDA fn",
			want:   internal.Route{GatewayID: "api1", Method: "PUT", Path: "/a", Function: "fn", SourceFile: "items.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parser{}.Parse("items.py", strings.NewReader(tt.header))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reason string
	}{
		{name: "empty file", header: "", reason: "expected 3 header lines, found 0"},
		{name: "truncated", header: "# API_GATEWAY api1\n# GET /items\n", reason: "found 2"},
		{name: "missing marker", header: "API_GATEWAY api1 x\n# GET /items\n# LAMBDA fn\n", reason: "comment marker"},
		{name: "marker glued to tag", header: "#API_GATEWAY api1\n# GET /items\n# LAMBDA fn\n", reason: "expected 3 tokens"},
		{name: "wrong gateway tag", header: "# GATEWAY api1\n# GET /items\n# LAMBDA fn\n", reason: "expected API_GATEWAY"},
		{name: "wrong lambda tag", header: "# API_GATEWAY api1\n# GET /items\n# FUNCTION fn\n", reason: "expected LAMBDA"},
		{name: "lines swapped", header: "# GET /items\n# API_GATEWAY api1\n# LAMBDA fn\n", reason: "expected API_GATEWAY"},
		{name: "missing gateway id", header: "# API_GATEWAY\n# GET /items\n# LAMBDA fn\n", reason: "expected 3 tokens, found 2"},
		{name: "extra token", header: "# API_GATEWAY api1\n# GET /items extra\n# LAMBDA fn\n", reason: "line 2: expected 3 tokens, found 4"},
		{name: "relative path", header: "# API_GATEWAY api1\n# GET items\n# LAMBDA fn\n", reason: "must start with /"},
		{name: "unknown method", header: "# API_GATEWAY api1\n# FETCH /items\n# LAMBDA fn\n", reason: "unsupported HTTP method"},
		{name: "blank first line", header: "\n# API_GATEWAY api1\n# GET /items\n# LAMBDA fn\n", reason: "line 1: expected 3 tokens, found 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parser{}.Parse("bad.py", strings.NewReader(tt.header))
			require.Error(t, err)
			assert.Equal(t, internal.Route{}, got)
			assert.True(t, errors.Is(err, ErrInvalidHeader))

			var herr *HeaderError
			require.True(t, errors.As(err, &herr))
			assert.Equal(t, "bad.py", herr.File)
			assert.Contains(t, herr.Reason, tt.reason)
			assert.Contains(t, err.Error(), "bad.py")
			assert.Contains(t, err.Error(), "# API_GATEWAY <gateway_id>")
		})
	}
}

func TestParse_ErrorShowsHeaderText(t *testing.T) {
	header := "# API_GATEWAY api1\n# GET /items\n# HANDLER fn\nprint('hi')\n"

	_, err := Parser{}.Parse("items.py", strings.NewReader(header))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "# API_GATEWAY api1\n# GET /items\n# HANDLER fn")
	assert.NotContains(t, err.Error(), "print('hi')")
}

func TestParse_CustomMarker(t *testing.T) {
	p := Parser{Marker: "//"}

	got, err := p.Parse("items.js", strings.NewReader("// API_GATEWAY api1\n// GET /items\n// LAMBDA itemsFn\n"))
	require.NoError(t, err)
	assert.Equal(t, "itemsFn", got.Function)

	_, err = p.Parse("items.py", strings.NewReader("# API_GATEWAY api1\n# GET /items\n# LAMBDA itemsFn\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "// API_GATEWAY <gateway_id>")
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.py")
	require.NoError(t, os.WriteFile(path, []byte("# API_GATEWAY api1\n# GET /items\n# LAMBDA itemsFn\n"), 0o644))

	got, err := Parser{}.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got.SourceFile)
	assert.Equal(t, "api1", got.GatewayID)

	_, err = Parser{}.ParseFile(filepath.Join(dir, "missing.py"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidHeader))
}
