package sentinel

import "errors"

// Sentinel errors for persistence-layer facts. Stores, documents and adapters
// return these (optionally wrapped) so callers can branch with errors.Is
// without depending on driver error types.
//
// These represent factual states about stored data, not validation failures:
//   - ErrNotFound: document does not exist in its collection
//   - ErrNotPopulated: a relationship field was read while no value is set
//   - ErrInvalidPopulation: a relationship field holds neither an identifier
//     nor a recognizable embedded document
//   - ErrMissingReferenceID: a relationship write was given a value without
//     an identifier
//   - ErrInvalidIdentifier: a store identifier is not syntactically valid
//   - ErrInvalidState: operation attempted in the wrong lifecycle state
//     (committed unit of work reused, embedded document saved, ...)
var (
	ErrNotFound           = errors.New("not found")
	ErrNotPopulated       = errors.New("not populated")
	ErrInvalidPopulation  = errors.New("invalid population")
	ErrMissingReferenceID = errors.New("missing reference id")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidState       = errors.New("invalid state")
)
