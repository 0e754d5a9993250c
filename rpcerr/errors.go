package rpcerr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies an RPC error by its response code
type Kind int

const (
	KindUnknown             Kind = 0
	KindSeeOther            Kind = 303
	KindBadRequest          Kind = 400
	KindUnauthorized        Kind = 401
	KindForbidden           Kind = 403
	KindNotAcceptable       Kind = 406
	KindFlood               Kind = 420
	KindInternalServerError Kind = 500
	KindServiceUnavailable  Kind = 503
)

var kindNames = map[Kind]string{
	KindUnknown:             "Unknown",
	KindSeeOther:            "SeeOther",
	KindBadRequest:          "BadRequest",
	KindUnauthorized:        "Unauthorized",
	KindForbidden:           "Forbidden",
	KindNotAcceptable:       "NotAcceptable",
	KindFlood:               "Flood",
	KindInternalServerError: "InternalServerError",
	KindServiceUnavailable:  "ServiceUnavailable",
}

// String returns the kind name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kindForCode maps a raw response code onto a known kind.
// Codes Telegram does not document collapse into KindUnknown.
func kindForCode(code int) Kind {
	k := Kind(code)
	if _, ok := kindNames[k]; ok {
		return k
	}
	return KindUnknown
}

// floodWaitPrefix marks the 420 id that is returned as *FloodWait. Other
// waits (SLOWMODE_WAIT_X, FLOOD_PREMIUM_WAIT_X, ...) stay plain Flood errors.
const floodWaitPrefix = "FLOOD_WAIT_"

// RPCError is the root of every error returned by the Telegram API
type RPCError struct {
	Code    int    // Response code (400, 420, ...)
	ID      string // Error id with the numeric suffix replaced by X, e.g. FLOOD_WAIT_X
	Message string // Raw error message as sent by the server
	Value   int    // Numeric suffix of the raw message, 0 if absent
	RPC     string // Name of the method that caused the error, may be empty
}

func (e *RPCError) Error() string {
	if e.RPC != "" {
		return fmt.Sprintf("telegram: [%d %s] %s (caused by %q)", e.Code, e.ID, e.Message, e.RPC)
	}
	return fmt.Sprintf("telegram: [%d %s] %s", e.Code, e.ID, e.Message)
}

// Kind returns the kind derived from the response code
func (e *RPCError) Kind() Kind {
	return kindForCode(e.Code)
}

// FloodWait is returned when the server asks the caller to wait before retrying.
// It is a control-flow signal and is never treated as a reportable failure.
type FloodWait struct {
	*RPCError
	Wait time.Duration
}

func (e *FloodWait) Error() string {
	return fmt.Sprintf("%s: must wait %v", e.RPCError.Error(), e.Wait)
}

func (e *FloodWait) Unwrap() error {
	return e.RPCError
}

// New builds a typed error from a server error response.
// message is the raw error string (e.g. FLOOD_WAIT_30) and rpc names the
// method that failed.
func New(code int, message string, rpc string) error {
	id, value := splitValue(message)

	base := &RPCError{
		Code:    code,
		ID:      id,
		Message: message,
		Value:   value,
		RPC:     rpc,
	}

	if code == int(KindFlood) && strings.HasPrefix(message, floodWaitPrefix) {
		return &FloodWait{
			RPCError: base,
			Wait:     time.Duration(value) * time.Second,
		}
	}

	return base
}

// NewFloodWait builds a FloodWait for the given wait duration
func NewFloodWait(wait time.Duration, rpc string) *FloodWait {
	seconds := int(wait / time.Second)
	return &FloodWait{
		RPCError: &RPCError{
			Code:    int(KindFlood),
			ID:      floodWaitPrefix + "X",
			Message: floodWaitPrefix + strconv.Itoa(seconds),
			Value:   seconds,
			RPC:     rpc,
		},
		Wait: wait,
	}
}

// splitValue replaces a trailing all-digit segment with X and returns it
func splitValue(message string) (string, int) {
	idx := strings.LastIndexByte(message, '_')
	if idx < 0 || idx == len(message)-1 {
		return message, 0
	}

	suffix := message[idx+1:]
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return message, 0
		}
	}

	value, err := strconv.Atoi(suffix)
	if err != nil {
		return message, 0
	}

	return message[:idx+1] + "X", value
}

// AsRPCError extracts the protocol error from err's chain
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if err != nil && errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// IsRPCError reports whether err originates from a Telegram server response
func IsRPCError(err error) bool {
	_, ok := AsRPCError(err)
	return ok
}

// AsFloodWait extracts the flood wait signal from err's chain
func AsFloodWait(err error) (*FloodWait, bool) {
	var fw *FloodWait
	if err != nil && errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}

// IsFloodWait reports whether err asks the caller to wait before retrying
func IsFloodWait(err error) bool {
	_, ok := AsFloodWait(err)
	return ok
}

// KindOf returns the kind of the protocol error in err's chain.
// Errors that are not protocol errors report KindUnknown.
func KindOf(err error) Kind {
	if rpcErr, ok := AsRPCError(err); ok {
		return rpcErr.Kind()
	}
	return KindUnknown
}

// Is checks if err is a protocol error of the given kind
func Is(err error, kind Kind) bool {
	return IsRPCError(err) && KindOf(err) == kind
}
