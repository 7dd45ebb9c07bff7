// Package validate wraps struct-tag validation for request DTOs.
//
// Struct runs go-playground/validator over the tagged constraints and folds
// violations into a single InvalidInput error with one message per field,
// keyed by the field's JSON wire name. Handlers can return that error as is;
// the transport layer turns it into a 400 with the field map attached.
package validate
