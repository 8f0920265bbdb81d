// Package password hashes account credentials with Argon2id and verifies
// both Argon2id and legacy bcrypt hashes.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification never fails loudly: a malformed or unsupported hash simply does
// not match. [Hasher.NeedsUpgrade] reports hashes that should be re-encoded
// with the current parameters after the next successful login.
//
// Length and complexity policy is not enforced here.
package password
