package rosbridge

import (
	"encoding/json"
)

// Operations of the rosbridge v2 protocol used by the client
const (
	opSubscribe       = "subscribe"
	opUnsubscribe     = "unsubscribe"
	opPublish         = "publish"
	opCallService     = "call_service"
	opServiceResponse = "service_response"
	opStatus          = "status"
)

// message is the envelope of every rosbridge frame. Only the fields
// relevant to op are populated.
type message struct {
	Op          string          `json:"op"`
	ID          string          `json:"id,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Type        string          `json:"type,omitempty"`
	QueueLength int             `json:"queue_length,omitempty"`
	Msg         json.RawMessage `json:"msg,omitempty"`
	Service     string          `json:"service,omitempty"`
	Args        any             `json:"args,omitempty"`
	Values      json.RawMessage `json:"values,omitempty"`
	Result      *bool           `json:"result,omitempty"`
	Level       string          `json:"level,omitempty"`
}

type serviceResponse struct {
	values json.RawMessage
	result bool
}
