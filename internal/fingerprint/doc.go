// Package fingerprint builds model.Fingerprint records from partially
// retrieved images.
//
// For a remote image the Builder takes the size from the known probe
// headers (probing once if they lack a size), then:
//
//   - below the size floor: returns a size-only fingerprint (size and etag)
//   - otherwise: retrieves bytes 0..PrefixSize-1, hashes that exact window
//     with SHA-256, keeps its last SampleSize bytes as the boundary sample and
//     runs the metadata chain over it
//
// Local files follow the same policy with os.Stat and a file read in place
// of the network calls.
//
// Network failures are not errors of Build: the fingerprint is returned with
// whatever was learned and the failure in Result.Err. Build fails only when
// the reference cannot be turned into an address.
package fingerprint
