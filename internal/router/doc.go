// Package router dispatches bus messages to bridge operations.
//
// Each message is matched against an ordered table of topic patterns. The
// first match selects a handler and yields the subject (a device or command
// name) from the topic:
//
//	<prefix>device/<name>/send          transmit the command named by the payload
//	<prefix>device/<name>/learn         capture a code and store it under the payload
//	<prefix>device/<name>/add           register "<type> <host> <mac>"
//	<prefix>device/<name>/remove        forget the device
//	<prefix>device/<name>/discover      probe the payload address and register the unit
//	<prefix>command/<name>/add          store a hex code
//	<prefix>command/<name>/add_pronto   convert and store a Pronto code
//	<prefix>command/<name>/remove       delete a stored code
//	<prefix>log/level                   change and persist the log level
//
// Nothing is published in reply. Every routed message produces an Outcome
// which is logged and handed to the configured recorders.
//
// Messages are handled one at a time by Run, so handlers never race each
// other. A learn request holds the loop for up to its budget.
package router
