package mcpclient

import (
	"encoding/json"
	"net/http"
)

// Response is the uniform outcome of every Client call (spec §4.7:
// "Response {success, data, error, statusCode, headers}").
type Response struct {
	Success    bool
	Data       json.RawMessage
	Error      string
	StatusCode int
	Headers    http.Header
}

// Unmarshal decodes Data into v, a convenience for callers that know the
// expected result shape (e.g. a tools/list result).
func (r Response) Unmarshal(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
