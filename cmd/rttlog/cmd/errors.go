package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// printErrorChain writes err and the errors it wraps, outermost first.
func printErrorChain(w io.Writer, err error) {
	chain := errorChain(err)
	fmt.Fprintf(w, "Error: %s\n", chain[0])
	if len(chain) == 1 {
		return
	}
	fmt.Fprintln(w, "\nCaused by:")
	for i, msg := range chain[1:] {
		fmt.Fprintf(w, "    %d: %s\n", i, msg)
	}
}

// errorChain lists the message of each wrapping level without the text it
// repeats from the error it wraps.
func errorChain(err error) []string {
	var chain []string
	for err != nil {
		next := unwrapCause(err)
		msg := err.Error()
		if next != nil {
			msg = strings.TrimSuffix(msg, ": "+next.Error())
		}
		chain = append(chain, msg)
		err = next
	}
	return chain
}

// unwrapCause follows single wrapping, and for errors joining several
// (fmt.Errorf with more than one %w) the last one, which by convention in
// this module is the underlying cause.
func unwrapCause(err error) error {
	if next := errors.Unwrap(err); next != nil {
		return next
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		errs := multi.Unwrap()
		if len(errs) > 0 {
			return errs[len(errs)-1]
		}
	}
	return nil
}
