// Package rate counts failed password logins in Redis.
//
// Fixed windows per key: a Lua script increments the counter and sets its
// expiry on the first failure, so later failures never extend the window.
// Keys:
//   - login_fail:{username}
//   - login_fail_ip:{ip} (when the IP throttle is on)
//
// Policy (how many failures, how long the window) is supplied by the caller.
package rate
