// Package subscription holds the subscription row, its guarded-upsert store
// and the read cache in front of it.
//
// Each tenant owns at most one row, keyed by tenant id. The store's Upsert
// is deliberately dumb about the state machine: producers state their guard
// rules through UpsertOptions (skip when pending, skip when the external ref
// already matches), and human transitions go through Transition, a
// compare-and-set gated by a Precondition. Both map to single conditional
// SQL statements in the Postgres implementation, which is what makes the
// webhook receiver and the checkout verifier safe to race against each
// other.
//
// The one transition rule every producer must respect: a pending
// subscription is only ever moved by the approval gate. Automatic payment
// signals pass SkipIfStatus(StatusPending) and treat a skipped upsert as
// success.
package subscription
