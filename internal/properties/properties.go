// Package properties reads the process environment. Values are optional;
// empty strings disable the feature they configure.
package properties

import "os"

func SuccessWebhookURL() string {
	return os.Getenv("SI_SUCCESS_WEBHOOK_URL")
}

func FailureWebhookURL() string {
	return os.Getenv("SI_FAILURE_WEBHOOK_URL")
}
