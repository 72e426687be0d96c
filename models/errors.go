package models

// Wire error codes. These follow the PSM-XXXX convention of the host product;
// license errors occupy the PSM-5XXX block.
const (
	CodeInternal     = "PSM-5000"
	CodeInvalidKey   = "PSM-5001"
	CodeBadRequest   = "PSM-5002"
	CodeKeyNotFound  = "PSM-5003"
	CodeKeyRevoked   = "PSM-5004"
	CodeKeyExpired   = "PSM-5005"
	CodeRateLimited  = "PSM-5006"
	CodeUnauthorized = "PSM-5007"
)
