package obsws

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// obs-websocket v5 protocol: op-coded envelopes over a websocket connection
// speaking the "obswebsocket.json" subprotocol.

const subprotocol = "obswebsocket.json"

// WebSocketOpCode
const (
	opHello        = 0
	opIdentify     = 1
	opIdentified   = 2
	opEvent        = 5
	opRequest      = 6
	opRequestReply = 7
)

// rpcVersion this client implements.
const rpcVersion = 1

// EventSubscription bits. Only output events matter to the session.
const (
	eventSubscriptionOutputs = 1 << 6
)

// RequestStatus codes this client gives special treatment.
const (
	statusOutputRunning    = 500
	statusOutputNotRunning = 501
)

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloMessage struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyMessage struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type identifiedMessage struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type requestMessage struct {
	RequestType string      `json:"requestType"`
	RequestID   string      `json:"requestId"`
	RequestData interface{} `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type requestReply struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

type eventMessage struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

// buildAuthResponse computes the v5 challenge response:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func buildAuthResponse(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])

	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}
