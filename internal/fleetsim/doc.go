// Package fleetsim is a stand-in fleet backend for development and tests.
//
// It speaks the same REST API as the real gateway: bearer login, the
// {code, message, data} envelope, paged device lists and full-record PUTs,
// with device identifiers past 2^53. It also reproduces the behaviour the
// console has to cope with:
//
//   - updates are acknowledged immediately but list reads return the old
//     record until Lag has passed (or never, with Store.SetHidden)
//   - Store.FailNextUpdate makes the next PUT fail with a chosen status
//   - expired or forged tokens get a 401
//
// Tokens are HS256 JWTs. Passwords are bcrypt hashed.
package fleetsim
