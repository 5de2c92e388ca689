// Package domain defines the payload types that move through the pipeline:
// goals, tasks, patches and reviews, plus the mutation ops a patch carries.
//
// Each queue carries exactly one of these types, so the mandatory fields of
// every stage are enforced by the type system rather than by optional-field
// records.
package domain
