package terminal

// Message types on the refdata socket.
const (
	msgTypeRequest  = "refdata_request"
	msgTypeResponse = "refdata_response"
)

// refdataRequest asks the gateway for field values on a set of securities.
type refdataRequest struct {
	Type       string   `json:"type"`
	RequestID  int64    `json:"request_id"`
	Securities []string `json:"securities"`
	Fields     []string `json:"fields"`
}

// refdataResponse is the gateway's answer to a refdataRequest, matched to it
// by request ID.
type refdataResponse struct {
	Type       string         `json:"type"`
	RequestID  int64          `json:"request_id"`
	Error      string         `json:"error,omitempty"`
	Securities []SecurityData `json:"securities"`
}

// SecurityData carries one security's field values. A field the gateway
// cannot supply is absent or null; a security-level failure sets Error.
type SecurityData struct {
	Security string              `json:"security"`
	Fields   map[string]*float64 `json:"fields"`
	Error    string              `json:"error,omitempty"`
}
