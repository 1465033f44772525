// Package mlog centralizes the optional logr.Logger every mywr package
// accepts. None of the subsystems require a logger; when the caller does
// not supply one, they log through Default, a stdr logger over the
// standard library's log package. The logger never changes behaviour,
// only observability.
package mlog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Default returns the package-wide fallback logger used when a caller
// constructs a hook without an explicit WithLogger option, and by winproc
// and memexec until their SetLogger is called.
func Default() logr.Logger {
	return stdr.New(nil)
}

// Or returns l if it is set, otherwise the discard logger. logr.Logger's
// zero value already discards, but this makes the intent explicit at call
// sites that accept a *logr.Logger option.
func Or(l *logr.Logger) logr.Logger {
	if l != nil {
		return *l
	}
	return logr.Discard()
}
