package models

import "errors"

var (
	ErrConfigInvalid       = errors.New("configuration invalid")
	ErrSourceUnreachable   = errors.New("source unreachable")
	ErrRetrievalDegraded   = errors.New("retrieval degraded")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrDeliveryFailed      = errors.New("delivery failed")
	ErrPersistenceDegraded = errors.New("persistence degraded")
)
