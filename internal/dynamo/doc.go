// Package dynamo provides the primitives shared by every viscosim package.
//
//   - [Coord]: 3-vector used for positions, velocities and forces
//   - coordinate-array helpers ([CloneCoords], [TranslateCoords], [Bounds], ...)
//   - [ParallelFor]: chunked per-particle work for solver internals
//   - sentinel errors plus [WiringError] and [StepError]
//
// # Errors
//
// Wiring errors (cycles, double-fed fields, duplicate modules) surface while a
// body is assembled and are fatal to construction. Step errors wrap the stage
// that failed inside an advance call:
//
//	if err := body.Advance(dt); err != nil {
//		var se *dynamo.StepError
//		if errors.As(err, &se) {
//			log.Printf("stage %s failed", se.Stage)
//		}
//	}
package dynamo
