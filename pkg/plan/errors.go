package plan

import "errors"

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPriceRefNotFound     = errors.New("no plan matches provider price ref")
	ErrInvalidConfiguration = errors.New("invalid plan catalog configuration")
	ErrFailedToLoadCatalog  = errors.New("failed to load plan catalog")
)
