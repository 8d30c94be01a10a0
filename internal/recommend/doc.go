// Package recommend implements the base-image recommendation engine.
//
// The engine ranks cataloged container images against a caller-supplied
// Requirement using five weighted factors:
//
//   - Language match (0.40): does the image ship the requested runtime?
//   - Version compatibility (0.25): how close is the shipped version?
//   - Package ecosystem (0.20): are the requested packages available?
//   - Size preference (0.10): does the image fit the caller's size class?
//   - Security (0.05): vulnerability counts and trusted-distro provenance.
//
// Security is deliberately the smallest weight: hard security gates and a
// pre-filter remove disqualified candidates before scoring, so the factor
// only fine-tunes ranking among images that already passed.
//
// The engine reads candidates through the CandidateSource interface so the
// catalog store can be swapped out in tests. Scoring itself is pure and
// synchronous: every candidate's analysis view is assembled once, scored,
// and discarded with the response.
//
// AnalyzeImage derives a Requirement from an already-cataloged image and
// retries with progressively relaxed version constraints (exact, then
// major.minor, then unconstrained) when the stricter searches come up empty.
package recommend
