// Package device defines the bridge's device model and registry.
//
// The Device and Feature interfaces are the boundary between the bridge's
// orchestration (discovery, polling, command routing) and the Kasa wire
// protocol implemented in the kasa package. Tests substitute fakes behind the
// same interfaces.
//
// The Registry keeps the identity → handle/topic mapping and its reverse in
// memory only. It is append-only by design: entries live for the process
// lifetime so topic names stay stable for downstream consumers, and the whole
// registry is rebuilt by discovery on restart.
package device
