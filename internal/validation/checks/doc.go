// Package checks holds the built-in post-validation checks. Each check
// corrects the document in place where its rule allows and records every
// finding in the report.
package checks
