package quotegate

import (
	"fmt"
	"time"
)

// OverLimitError is returned when the rate limiter denies admission for an
// outbound request. RetryAfter reports how long until a slot frees up.
type OverLimitError struct {
	RetryAfter time.Duration
}

func (e *OverLimitError) Error() string {
	return fmt.Sprintf("over the request limit; retry in %s", e.RetryAfter)
}
