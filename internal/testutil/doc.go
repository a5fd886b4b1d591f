// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing transcripts, rosters and session
// records, and when standing in for the Generator collaborator. They are not
// intended for production usage.
package testutil
