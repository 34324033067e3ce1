// Package camera drives a single V4L2 capture device through the
// camera-triggered acquisition loop: capture a frame, synchronously
// generate the matching stimulus frame, record both under the same
// timestamp, publish to the shared-memory planes, and feed the
// synchronization tracker — in that fixed order, on one dedicated worker
// thread, so frame and stimulus stay in 1:1 correspondence by construction.
//
// Core Components:
//   - Driver: opens the configured device, probes for hardware timestamps,
//     and runs the acquisition loop.
//   - BoundedWorkerPool: reused by the analysis pipeline for bounded
//     parallel work; unrelated to the acquisition loop itself, which runs
//     single-threaded per iteration by design.
package camera
