package notifications

const (
	DefaultLimit = 20
	MaxLimit     = 100
)
