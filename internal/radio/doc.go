// Package radio defines the domain vocabulary shared by the confined worker,
// the downstream modem, and callers.
//
// Every command carries an Opcode, the Instance it targets, and a Payload.
// Payloads form a sealed tagged union: one struct per opcode family, each
// implementing the unexported payload marker.
//
// Downstream work finishes with an Outcome: a value, a structured *Error, or
// nothing at all. The worker shapes an Outcome into a definitive result,
// which is either an opcode-specific value, a Failure, or Unknown. Failure and
// Unknown implement error so typed callers can surface them directly.
package radio
