/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import "errors"

// ErrInvalidConfig is returned when the limiter cannot be constructed with the given parameters.
var ErrInvalidConfig = errors.New("invalid limiter config")
