// Package capture negotiates a diagnostic capture session with the platform.
//
// The Negotiator walks a fixed selection ladder (stored preference, scoring
// winner, first non-telephoto candidate, first non-front device, facing hint)
// and requests capture with a broadly compatible constraint set. If the
// platform reports the set as over-constrained it retries exactly once with a
// minimal set; every other failure is classified into a small taxonomy that
// drives the same manual retry remediation. A granted session is only held
// long enough to read its settings and capabilities.
//
// The Reselector handles the post-grant case where the platform granted a
// telephoto sensor anyway: it stores the wide camera as the preference for
// the next attempt.
package capture
