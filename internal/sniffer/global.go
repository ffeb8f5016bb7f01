package sniffer

import "sync/atomic"

// globalPipeline is the process-wide slot the driver's promiscuous RX
// callback reads from. A real driver API gives the callback no way to
// carry captured state (it is a bare function pointer registered once
// with the radio firmware), so the pipeline is stashed here at startup
// and never reassigned afterward (spec §9).
//
// atomic.Pointer gives the callback a non-blocking read with no lock to
// contend on; if the slot hasn't been set yet the frame is skipped
// rather than waited on.
var globalPipeline atomic.Pointer[Pipeline]

// Install sets the process-wide pipeline. Call exactly once at startup,
// before the driver can deliver any frame.
func Install(p *Pipeline) {
	globalPipeline.Store(p)
}

// DriverCallback is the shape a real promiscuous-mode RX registration
// expects: no captured state, called directly in driver task context.
// It forwards to whatever pipeline Install last set, or does nothing if
// none has been installed yet.
func DriverCallback(buf []byte, rssi int8, channel uint8, tsMicros uint64) {
	p := globalPipeline.Load()
	if p == nil {
		return
	}
	p.HandleFrame(buf, rssi, channel, tsMicros)
}
