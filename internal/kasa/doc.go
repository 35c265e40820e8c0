// Package kasa speaks the first-generation TP-Link Kasa smart-device
// protocol: UDP broadcast discovery, TCP request/response with a 4-byte
// length prefix, and the autokey XOR cipher both transports share.
//
// The package exposes devices through the interfaces in internal/device so
// the rest of the bridge never touches wire details. Hubs surface their
// children as devices of their own; relay writes to a child are routed
// through the hub with a child_ids context.
package kasa
