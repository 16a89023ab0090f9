// Package password hashes and verifies credentials with argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Parameters are read back from the string, so older hashes keep verifying
// after the configuration is raised; [Hasher.NeedsRehash] tells the caller
// when to store a fresh hash.
package password
