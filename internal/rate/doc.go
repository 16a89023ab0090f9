// Package rate provides Redis fixed-window counters for login throttling and
// per-client request limiting.
//
// # Window semantics
//
// INCR, then PEXPIRE on the first hit of a window. Key families:
//   - <prefix>:rl:login:<identifier>  failed logins per identifier
//   - <prefix>:rl:loginip:<ip>        failed logins per client IP
//   - <prefix>:rl:req:<client>        requests per client
//
// Callers decide whether a store error blocks or passes; the authority and the
// request middleware both pass.
package rate
