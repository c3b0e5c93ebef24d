// Package export archives monthly usage statements to S3-compatible object
// storage.
//
// Each statement is a JSON document holding the user's plan, the calendar
// month, per-type totals and the daily series, written to
//
//	statements/{yyyy-mm}/{userID}.json
//
// Statements are derived entirely from the usage ledger, so re-running an
// export for a month overwrites each object with identical content apart from
// generatedAt.
package export
