// Package protocol implements the RESP-style wire protocol spoken by the
// cache server and its client.
//
// The package has three parts:
//   - pure Encode* functions that render a single value as bytes
//   - a streaming Reader that decodes exactly one value (or one request)
//     per call from a live connection, tolerating short reads
//   - a buffered Writer used by connection handlers and clients
//
// Servers read requests, which arrive either as plain text lines whose first
// word is the command keyword or as arrays of bulk strings:
//
//	reader := protocol.NewReader(conn)
//	for {
//		cmd, err := reader.ReadRequest()
//		if err != nil {
//			break
//		}
//		// Dispatch cmd
//	}
//
// Clients read replies with ReadReply, which accepts the four reply tags:
//   - Simple Strings (+)
//   - Errors (-)
//   - Integers (:)
//   - Bulk Strings ($), including the null bulk string
package protocol
