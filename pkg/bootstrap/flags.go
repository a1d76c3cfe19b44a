package bootstrap

import "time"

// ClientFlags holds the values of the shared client flags. The values are
// read through viper; the struct only gives cobra somewhere to write.
type ClientFlags struct {
	Endpoint  string
	Token     string
	TokenFile string
	UserID    string
	Timeout   time.Duration
	Mode      string
}
