// Package mail builds account notification mails and hands them to a
// delivery backend. Delivery is fire-and-forget from the caller's point of
// view: a failed send is logged, never surfaced to the user.
package mail
