// Package flows contains the orchestration for every Engine operation.
//
// Each Run* function takes a typed dependency struct built once by the root
// engine and returns either a result or one of the host sentinels carried in
// the struct's Errors field. Flows hold no state between calls and never
// import the root package.
package flows
