package psadiag

const (
	KB int64 = 1 << (10 * (iota + 1))
	MB
	GB
	TB
)
