package constants

const (
	APIName = "CARELOOP"
)

const (
	DefaultTop  = 20
	DefaultSkip = 0
)
