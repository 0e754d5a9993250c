// Package errhook routes errors raised by a Telegram client to a single
// user callback.
//
// A Client runs blocking work through a Dispatcher and reports failures that
// escape all handling to a fallback sink. Both extension points live on a
// Scheduler that clients may share. OnError installs an error interceptor on
// them:
//
//	client := errhook.NewClient(errhook.WithLogger(logger))
//	_, err := client.OnError(func(c *errhook.Client, err error) error {
//		logger.Error("telegram error", "clientId", c.ID(), "error", err)
//		return nil
//	}, false)
//
// Protocol errors (rpcerr.RPCError) are always delivered to the callback.
// With catchAll every error is, for every client on the scheduler. Flood
// waits (rpcerr.FloodWait) are never delivered and always reach the caller.
package errhook
