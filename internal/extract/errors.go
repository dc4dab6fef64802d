package extract

import "errors"

// Match with errors.Is. ErrElementNotFound means the selector matched
// nothing at all; ErrPriceNotFound means something matched but carried
// no usable price signal anywhere on the page.
var (
	ErrElementNotFound = errors.New("price element not found")
	ErrPriceNotFound   = errors.New("price not found")
	ErrParse           = errors.New("could not parse price")
)
