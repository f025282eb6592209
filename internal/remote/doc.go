// Package remote talks to the launcher's backing store over HTTP.
//
// Documents are saved with a JSON POST and loaded with a GET. Non-2xx
// responses are logged with the endpoint path, status and response body, and
// returned as *StatusError.
package remote
