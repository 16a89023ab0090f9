// Package postgres is the reference insightx.UserStore backed by PostgreSQL.
//
// Connections go through database/sql with the pgx stdlib driver. The schema
// lives in embedded goose migrations applied by [Migrate]. Passwords are
// stored as argon2id PHC strings produced by the password package, and the
// store implements insightx.PasswordUpgrader so logins can rehash them.
package postgres
