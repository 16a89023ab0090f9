// Package flows contains the credential flows behind Authority.Login,
// Authority.Refresh and Authority.Logout.
//
// Each Run function takes a dependency struct of funcs and holds no state
// between calls. The authority owns every resource and builds the deps once;
// tests substitute plain closures.
//
// This package must not import the root package.
package flows
