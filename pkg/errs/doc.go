/*
Package errs defines VoltGrid's error taxonomy and its HTTP mapping.

Five kinds cover every failure surfaced by the system: InvalidInput (400),
NotFound (404), DependencyUnavailable (503), Overload (429), and
InternalFailure (500). Code below the API boundary wraps causes with
fmt.Errorf("...: %w", err) as usual; classification happens where the error
is produced or at the boundary that knows the semantics:

	if err := store.GetScore(ctx, id); err != nil {
	    return errs.Wrap(errs.KindDependencyUnavailable, err, "score lookup")
	}

KindOf walks the wrap chain with errors.As, so a classified error keeps its
kind through any number of fmt wrappings. Anything unclassified is an
InternalFailure by definition.

InvalidInput errors carry per-field messages for the API response envelope:

	errs.Invalid("validation failed", map[string]string{
	    "lat": "must be within [-90, 90]",
	})
*/
package errs
