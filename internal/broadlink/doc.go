// Package broadlink implements the local UDP protocol spoken by Broadlink RM
// infrared/RF transceivers.
//
// It covers what the bridge needs and nothing more:
//   - Discover: hello probe (unicast or broadcast) listing units that answer
//   - Open: dial a unit and run the authentication handshake
//   - SendData: transmit a stored IR/RF packet
//   - EnterLearning / CheckData: capture a code from a physical remote
//
// # Wire Format
//
// Every request is a 0x38-byte header followed by an AES-128-CBC encrypted
// payload. Both the header and the payload carry 16-bit checksums seeded
// with 0xBEAF. Units start with a well-known key; the auth command (0x65)
// returns the session key and id used for everything afterwards.
//
//	┌────────────────────┬──────────────────────────────┐
//	│ header (0x38)      │ AES-CBC(payload, zero-padded)│
//	└────────────────────┴──────────────────────────────┘
//
// RM4 family units wrap command payloads in an extra 2-byte length prefix;
// the family is selected from the device type code.
//
// # Thread Safety
//
// A Client serialises requests internally; it is safe for concurrent use but
// a unit only ever processes one request at a time.
//
// # References
//
//   - python-broadlink: https://github.com/mjg59/python-broadlink
package broadlink
