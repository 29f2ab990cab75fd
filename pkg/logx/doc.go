// Package logx wraps zerolog behind a small structured-logging facade.
//
// Components receive a Logger value; the Service owns sink configuration
// (console/file) and can swap it at runtime via Apply().
package logx
