package service

import (
	"github.com/dukerupert/idunn/internal/domain"
)

// Shared service errors re-exported from domain for convenience.
var (
	ErrSubscriptionNotFound = domain.ErrSubscriptionNotFound
	ErrNoActiveSubscription = domain.ErrNoActiveSubscription
	ErrPlanNotFound         = domain.ErrPlanNotFound
	ErrStoreNotFound        = domain.ErrStoreNotFound
)

// Validation errors - use domain.EINVALID
var (
	ErrInvalidAction = domain.Errorf(domain.EINVALID, "", "Action must be \"cancel\" or \"reactivate\"")
)
