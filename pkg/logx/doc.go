// Package logx is a thin structured-logging facade over zerolog.
//
// Components receive a Logger by value and derive scoped loggers with
// With(). The zero value and Nop() are safe no-op loggers, which keeps
// tests free of logging setup.
package logx
