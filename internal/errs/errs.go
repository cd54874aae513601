package errs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// Tag attaches a sentinel kind to err so errors.Is matches both the kind and
// the original chain. The message stays the original one.
func Tag(err error, kind error) error {
	if err == nil {
		return nil
	}
	if kind == nil || errors.Is(err, kind) {
		return err
	}
	return &taggedError{err: err, kind: kind}
}

type taggedError struct {
	err  error
	kind error
}

func (e *taggedError) Error() string   { return e.err.Error() }
func (e *taggedError) Unwrap() []error { return []error{e.err, e.kind} }

// Kinds lists the kinds attached with Tag along the chain, outermost first.
func Kinds(err error) []error {
	var out []error
	for e := err; e != nil; e = unwrapCause(e) {
		if tagged, ok := e.(*taggedError); ok {
			out = append(out, tagged.kind)
		}
	}
	return out
}

// Loggable makes slog encode the error as structured fields.
// Usage: slog.Any("err", errs.Loggable(err))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

type loggable struct{ err error }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}
	if kinds := Kinds(l.err); len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for _, kind := range kinds {
			names = append(names, kind.Error())
		}
		attrs = append(attrs, slog.Any("kinds", names))
	}
	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
// Tagged errors are followed through their cause, not their kind.
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; e = unwrapCause(e) {
		out = append(out, e.Error())
	}
	return out
}

func unwrapCause(err error) error {
	if tagged, ok := err.(*taggedError); ok {
		return tagged.err
	}
	return errors.Unwrap(err)
}
