// Package scoring ranks capture devices by how likely each one is the wide
// main sensor.
//
// The policy is a rule table of label indicators and weights, loaded from
// configuration, so it can be tuned and tested without any platform device
// enumeration. Front-facing labels are excluded; unlabeled devices are kept.
package scoring
