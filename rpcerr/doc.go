// Package rpcerr provides the typed taxonomy of errors returned by the
// Telegram API.
//
// Every error that originates from a server response is an *RPCError. The
// numeric code groups errors into kinds (BadRequest, Flood, ...) and the
// textual ID names the concrete failure (PEER_ID_INVALID, FLOOD_WAIT_X, ...).
//
// Rate limiting is modelled separately: a 420 FLOOD_WAIT_X response is
// returned as *FloodWait. Other 420 waits such as SLOWMODE_WAIT_X stay plain
// Flood errors. A FloodWait unwraps to its *RPCError, so it is both a
// protocol error and a control-flow signal telling the caller how long to pause.
//
// Example usage:
//
//	err := rpcerr.New(420, "FLOOD_WAIT_30", "messages.sendMessage")
//	if fw, ok := rpcerr.AsFloodWait(err); ok {
//		time.Sleep(fw.Wait)
//	}
package rpcerr
