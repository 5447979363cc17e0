// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the workers that call other platform services.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
